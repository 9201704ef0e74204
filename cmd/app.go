// =============================================================================
// Donation Ledger - Pipeline Environment
// =============================================================================
//
// This file wires the configured stores, services and pipeline stages
// together. Every command that touches the ledger builds one environment,
// uses it and closes it.
//
// WIRING ORDER:
//   1. Open the ledger (migrations are applied on open)
//   2. Fill empty pipeline keys from the ledger's named settings
//   3. Open the file store and load the source profiles
//   4. Build the mailer lazily, only when a run needs to send mail
//
// =============================================================================

package cmd

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/ack"
	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/filestore"
	"github.com/ginjaninja78/donation-ledger/internal/importer"
	"github.com/ginjaninja78/donation-ledger/internal/ledger"
	"github.com/ginjaninja78/donation-ledger/internal/mailer"
	"github.com/ginjaninja78/donation-ledger/internal/render"
	"github.com/ginjaninja78/donation-ledger/internal/report"
	"github.com/ginjaninja78/donation-ledger/internal/rollup"
)

// pipelineEnv holds the shared dependencies of one process.
type pipelineEnv struct {
	cfg      *config.Config
	ledger   *ledger.Guarded
	files    filestore.Store
	profiles []config.SourceProfile
	logger   *zap.Logger

	mailOnce sync.Once
	mail     mailer.Mailer
	mailErr  error
}

// openLedger opens the ledger alone, for commands that need nothing else.
func openLedger(ctx context.Context) (*ledger.Guarded, error) {
	if strings.TrimSpace(cfg.Ledger.DSN) == "" {
		return nil, eris.Wrap(config.ErrMissingConfig, "ledger.dsn")
	}
	store, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return nil, eris.Wrap(err, "open ledger")
	}
	return store, nil
}

// initPipeline builds the environment from the loaded configuration.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	store, err := openLedger(ctx)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{cfg: cfg, ledger: store, logger: zap.L()}
	if err := cfg.ResolveNamed(ctx, store); err != nil {
		env.Close()
		return nil, err
	}

	env.files, err = filestore.Open(ctx, cfg.Files)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.profiles, err = config.LoadSourceProfiles(cfg.SourcesDir)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.logger.Debug("pipeline ready",
		zap.String("ledger", cfg.Ledger.Driver),
		zap.String("files", cfg.Files.Backend),
		zap.Int("profiles", len(env.profiles)),
	)
	return env, nil
}

// Close releases the ledger connection.
func (e *pipelineEnv) Close() {
	if err := e.ledger.Close(); err != nil {
		e.logger.Warn("close ledger", zap.Error(err))
	}
}

// mailer builds the configured mailer on first use.
func (e *pipelineEnv) mailer() (mailer.Mailer, error) {
	e.mailOnce.Do(func() {
		e.mail, e.mailErr = mailer.New(e.cfg.Mail, e.logger)
	})
	return e.mail, e.mailErr
}

// deliverer returns the summary deliverer. Mail is only required when the
// summary is to be emailed.
func (e *pipelineEnv) deliverer(opts report.Options) (*report.Deliverer, error) {
	d := &report.Deliverer{
		Recipients: e.cfg.Report.Recipients,
		SenderName: e.cfg.Ack.SenderName,
		ReplyTo:    e.cfg.Ack.ReplyTo,
		Files:      e.files,
		OutputArea: e.cfg.Files.Output,
		WriteFile:  e.cfg.Report.WriteSummaryFile && e.cfg.Files.Output != "",
		Logger:     e.logger.Named("report"),
	}
	if opts.Email {
		m, err := e.mailer()
		if err != nil {
			return nil, err
		}
		d.Mailer = m
	}
	return d, nil
}

// =============================================================================
// RUNS
// =============================================================================

func (e *pipelineEnv) runImport(ctx context.Context, opts report.Options) error {
	im, err := importer.New(importer.Options{
		IntakeArea:     e.cfg.Files.Intake,
		ProcessedArea:  e.cfg.Files.Processed,
		InsertionPoint: e.cfg.Ledger.InsertionPoint,
		Profiles:       e.profiles,
	}, e.ledger, e.files, e.logger)
	if err != nil {
		return err
	}

	res, err := im.Run(ctx)
	if err != nil {
		return err
	}
	return e.deliver(ctx, report.FromImport(res), opts)
}

func (e *pipelineEnv) runAcknowledge(ctx context.Context, opts report.Options) error {
	r, err := render.New(e.cfg.Ack.Template, e.cfg.Ack.Subject)
	if err != nil {
		return err
	}
	m, err := e.mailer()
	if err != nil {
		return err
	}

	engine, err := ack.New(ack.Options{
		OutputArea:         e.cfg.Files.Output,
		OrgName:            e.cfg.Ack.OrgName,
		SenderName:         e.cfg.Ack.SenderName,
		ReplyTo:            e.cfg.Ack.ReplyTo,
		ExcludedFundEmails: e.cfg.Ack.ExcludedFundEmails,
	}, e.ledger, r, m, e.files, e.logger)
	if err != nil {
		return err
	}

	res, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	return e.deliver(ctx, report.FromAck(res), opts)
}

func (e *pipelineEnv) runRollup(ctx context.Context, year int, opts report.Options) error {
	gen, err := rollup.New(rollup.Options{InsertionPoint: e.cfg.Ledger.InsertionPoint}, e.ledger, e.logger)
	if err != nil {
		return err
	}

	res, err := gen.Run(ctx, year)
	if err != nil {
		return err
	}
	return e.deliver(ctx, report.FromRollup(res), opts)
}

func (e *pipelineEnv) deliver(ctx context.Context, s report.Summary, opts report.Options) error {
	d, err := e.deliverer(opts)
	if err != nil {
		return err
	}
	return d.Deliver(ctx, s, opts)
}
