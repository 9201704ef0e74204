// =============================================================================
// Donation Ledger - Acknowledgement Engine
// =============================================================================
//
// This module walks the unacknowledged ledger records, top row first, and
// acknowledges each one at most once.
//
// DECISION TABLE:
//   P2                              mark acknowledged, nothing sent
//   D1 from an excluded fund email  skipped, not counted, not marked
//   unknown payment type            record error
//   not addressable                 skipped, left unacknowledged
//   has an email address            email sent, then marked
//   otherwise                       document stored, then marked
//
// A render, send, store or mark failure is recorded against the record and
// the run moves on. The record stays unacknowledged and is retried next run.
//
// =============================================================================

package ack

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/mailer"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/render"
)

// Ledger is the part of the ledger store the engine uses.
type Ledger interface {
	Unacknowledged(ctx context.Context) ([]model.Record, error)
	MarkAcknowledged(ctx context.Context, id string) error
}

// Renderer produces acknowledgement content. *render.Renderer satisfies it.
type Renderer interface {
	Subject(data render.AckData) (string, error)
	Body(data render.AckData) (string, error)
	Document(data render.AckData) ([]byte, error)
}

// DocumentStore stores rendered documents in the output area. Existing
// documents are never replaced.
type DocumentStore interface {
	Write(ctx context.Context, area, name string, data []byte) error
	Exists(ctx context.Context, area, name string) (bool, error)
}

// Options holds the resolved acknowledgement configuration.
type Options struct {
	OutputArea string
	OrgName    string
	SenderName string
	ReplyTo    string

	// ExcludedFundEmails lists donor advised fund addresses whose gifts are
	// acknowledged outside the ledger.
	ExcludedFundEmails []string
}

// Engine runs acknowledgement batches.
type Engine struct {
	opts     Options
	excluded map[string]bool
	ledger   Ledger
	renderer Renderer
	mailer   mailer.Mailer
	docs     DocumentStore
	logger   *zap.Logger
	now      func() time.Time
}

// New validates the configuration and returns an Engine.
func New(opts Options, ledger Ledger, renderer Renderer, m mailer.Mailer, docs DocumentStore, logger *zap.Logger) (*Engine, error) {
	if err := config.RequireKeys(map[string]string{"files.output": opts.OutputArea}); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.L()
	}

	excluded := make(map[string]bool, len(opts.ExcludedFundEmails))
	for _, e := range opts.ExcludedFundEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			excluded[e] = true
		}
	}

	return &Engine{
		opts:     opts,
		excluded: excluded,
		ledger:   ledger,
		renderer: renderer,
		mailer:   m,
		docs:     docs,
		logger:   logger.Named("ack"),
		now:      time.Now,
	}, nil
}

// Run acknowledges every pending record. Only a failure to read the ledger
// is returned as an error; per-record failures are in the result.
func (e *Engine) Run(ctx context.Context) (*model.AckBatchResult, error) {
	result := &model.AckBatchResult{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
	}
	log := e.logger.With(zap.String("run_id", result.RunID))

	pending, err := e.ledger.Unacknowledged(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ack: read unacknowledged records")
	}

	names := make(map[string]bool)
	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "ack: run cancelled")
		}
		e.process(ctx, r, result, names, log.With(zap.String("record_id", r.ID)))
	}

	result.FinishedAt = e.now()
	log.Info("acknowledgement finished",
		zap.Int("eligible", result.TotalEligible),
		zap.Int("emailed", result.Emailed),
		zap.Int("documented", result.Documented),
		zap.Int("skipped_recurring", result.SkippedRecurring),
		zap.Int("skipped_unaddressed", result.SkippedUnaddressed),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (e *Engine) process(ctx context.Context, r model.Record, result *model.AckBatchResult, names map[string]bool, log *zap.Logger) {
	if r.PaymentType == model.PaymentDonorAdvisedFund && e.excluded[strings.ToLower(r.EmailAddress)] {
		log.Debug("excluded fund gift skipped")
		return
	}
	result.TotalEligible++

	fail := func(err error) {
		log.Warn("acknowledgement failed", zap.Error(err))
		result.Errors = append(result.Errors, model.RecordError{
			RecordID: r.ID,
			Donor:    r.DonorName(),
			Detail:   err.Error(),
		})
	}

	switch {
	case r.PaymentType == model.PaymentRecurring:
		if err := e.ledger.MarkAcknowledged(ctx, r.ID); err != nil {
			fail(eris.Wrap(err, "mark recurring gift"))
			return
		}
		result.SkippedRecurring++
		return

	case !r.PaymentType.Valid():
		fail(eris.Errorf("unknown payment type %q", r.PaymentType))
		return

	case !r.Addressable():
		log.Debug("no email or postal address")
		result.SkippedUnaddressed++
		return
	}

	data := render.NewAckData(r, e.opts.OrgName)

	if strings.TrimSpace(r.EmailAddress) != "" {
		if err := e.email(ctx, r, data); err != nil {
			fail(err)
			return
		}
		if err := e.ledger.MarkAcknowledged(ctx, r.ID); err != nil {
			fail(eris.Wrap(err, "email sent but record not marked"))
			return
		}
		result.Emailed++
		log.Info("acknowledgement emailed")
		return
	}

	name, err := e.freeName(ctx, DocumentName(r), names)
	if err != nil {
		fail(err)
		return
	}
	if err := e.document(ctx, name, data); err != nil {
		fail(err)
		return
	}
	if err := e.ledger.MarkAcknowledged(ctx, r.ID); err != nil {
		fail(eris.Wrap(err, "document stored but record not marked"))
		return
	}
	result.Documented++
	log.Info("acknowledgement document stored", zap.String("document", name))
}

func (e *Engine) email(ctx context.Context, r model.Record, data render.AckData) error {
	subject, err := e.renderer.Subject(data)
	if err != nil {
		return err
	}
	body, err := e.renderer.Body(data)
	if err != nil {
		return err
	}
	return e.mailer.Send(ctx, mailer.Message{
		To:         []string{r.EmailAddress},
		Subject:    subject,
		HTMLBody:   body,
		ReplyTo:    e.opts.ReplyTo,
		SenderName: e.opts.SenderName,
	})
}

func (e *Engine) document(ctx context.Context, name string, data render.AckData) error {
	doc, err := e.renderer.Document(data)
	if err != nil {
		return err
	}
	return eris.Wrapf(e.docs.Write(ctx, e.opts.OutputArea, name, doc), "ack: store %s", name)
}

// =============================================================================
// DOCUMENT NAMES
// =============================================================================

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}-]+`)

func sanitize(s string) string {
	s = strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(s), "-"), "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// DocumentName returns "<Last>_<First>_<YYYY-MM-DD>.html" with every run of
// characters other than letters, digits and hyphens replaced by a hyphen.
func DocumentName(r model.Record) string {
	date := "undated"
	if !r.DonationDate.IsZero() {
		date = r.DonationDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%s_%s_%s.html", sanitize(r.LastName), sanitize(r.FirstName), date)
}

// freeName returns name, or name with the lowest "_N" suffix, N >= 2, that
// is neither taken earlier in this run nor present in the output area.
func (e *Engine) freeName(ctx context.Context, name string, taken map[string]bool) (string, error) {
	stem := strings.TrimSuffix(name, ".html")
	for n := 1; ; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d.html", stem, n)
		}
		if taken[candidate] {
			continue
		}
		taken[candidate] = true

		exists, err := e.docs.Exists(ctx, e.opts.OutputArea, candidate)
		if err != nil {
			return "", eris.Wrapf(err, "ack: check %s", candidate)
		}
		if !exists {
			return candidate, nil
		}
	}
}
