package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/mailer"
)

// FileWriter stores a summary file in an output area.
type FileWriter interface {
	Write(ctx context.Context, area, name string, data []byte) error
}

// Options selects how one summary is delivered.
type Options struct {
	Display bool
	Email   bool
}

// Deliverer shows, emails and files run summaries.
type Deliverer struct {
	Mailer     mailer.Mailer
	Recipients []string
	SenderName string
	ReplyTo    string

	// Files and OutputArea are used when WriteFile is set.
	Files      FileWriter
	OutputArea string
	WriteFile  bool

	Out    io.Writer
	Logger *zap.Logger
	Now    func() time.Time
}

func (d *Deliverer) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.L()
	}
	return d.Logger
}

// Deliver hands the summary to every selected channel. A summary with no
// units of work is not delivered anywhere. Every channel is attempted; the
// first failure is returned.
func (d *Deliverer) Deliver(ctx context.Context, s Summary, opts Options) error {
	log := d.logger().With(zap.String("kind", string(s.Kind)), zap.String("run_id", s.RunID))
	if s.Units == 0 {
		log.Info("nothing to report")
		return nil
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if opts.Display {
		out := d.Out
		if out == nil {
			out = os.Stdout
		}
		_, err := fmt.Fprintln(out, s.Console())
		keep(eris.Wrap(err, "report: display"))
	}

	if opts.Email {
		keep(d.email(ctx, s, log))
	}

	if d.WriteFile && d.Files != nil {
		name := d.fileName(s)
		if err := d.Files.Write(ctx, d.OutputArea, name, []byte(s.Text())); err != nil {
			keep(eris.Wrapf(err, "report: write %s", name))
		} else {
			log.Info("summary written", zap.String("file", name))
		}
	}

	return firstErr
}

func (d *Deliverer) email(ctx context.Context, s Summary, log *zap.Logger) error {
	if d.Mailer == nil || len(d.Recipients) == 0 {
		log.Warn("summary email requested but no recipients are configured")
		return nil
	}

	body, err := s.HTML()
	if err != nil {
		return err
	}
	err = d.Mailer.Send(ctx, mailer.Message{
		To:         d.Recipients,
		Subject:    fmt.Sprintf("Donation ledger: %s", strings.ToLower(s.Title())),
		HTMLBody:   body,
		ReplyTo:    d.ReplyTo,
		SenderName: d.SenderName,
	})
	if err != nil {
		return eris.Wrap(err, "report: email summary")
	}
	log.Info("summary emailed", zap.Strings("to", d.Recipients))
	return nil
}

// fileName returns e.g. "import_summary_20240315_060000.txt".
func (d *Deliverer) fileName(s Summary) string {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	slug := strings.ReplaceAll(strings.ToLower(string(s.Kind)), " ", "_")
	return fmt.Sprintf("%s_summary_%s.txt", slug, now().Format("20060102_150405"))
}
