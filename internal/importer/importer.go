// =============================================================================
// Donation Ledger - Import Orchestrator
// =============================================================================
//
// This module runs one import: every file in the intake area is classified,
// read by its source adapter and merged into the ledger.
//
// IMPORT PIPELINE (per file, in case-insensitive name order):
//   1. Classify the file by name prefix against the source profiles
//   2. Read it with the profile's adapter
//   3. Sort the file's records by donation date, newest first
//   4. Insert them as one contiguous block at the insertion point
//   5. Move the file to the processed area
//
// FAILURE HANDLING:
//   Errors are per file. A file that fails to read stays in the intake area
//   and is retried on the next run. A file whose records were inserted but
//   which could not be moved is reported with its insert count; it will be
//   imported again if it is left in the intake area.
//
// =============================================================================

package importer

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/filestore"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/source"
)

// Ledger is the part of the ledger store an import writes to.
type Ledger interface {
	InsertBlock(ctx context.Context, at int, recs []model.Record) error
}

// Options holds the resolved pipeline configuration for imports.
type Options struct {
	IntakeArea     string
	ProcessedArea  string
	InsertionPoint int
	Profiles       []config.SourceProfile
}

// Importer runs imports. Construct it with New.
type Importer struct {
	opts   Options
	ledger Ledger
	files  filestore.Store
	logger *zap.Logger

	// adapterFor is source.ForProfile outside of tests.
	adapterFor func(*config.SourceProfile, *zap.Logger) (source.Adapter, error)
	now        func() time.Time
}

// New validates the configuration and returns an Importer. A missing intake
// or processed area, or an insertion point below 1, is ErrMissingConfig.
func New(opts Options, ledger Ledger, files filestore.Store, logger *zap.Logger) (*Importer, error) {
	if err := config.RequireKeys(map[string]string{
		"files.intake":    opts.IntakeArea,
		"files.processed": opts.ProcessedArea,
	}); err != nil {
		return nil, err
	}
	if opts.InsertionPoint < 1 {
		return nil, eris.Wrapf(config.ErrMissingConfig,
			"ledger.insertion_point must be at least 1, got %d", opts.InsertionPoint)
	}
	if len(opts.Profiles) == 0 {
		opts.Profiles = config.DefaultSourceProfiles()
	}
	if logger == nil {
		logger = zap.L()
	}

	return &Importer{
		opts:       opts,
		ledger:     ledger,
		files:      files,
		logger:     logger.Named("importer"),
		adapterFor: source.ForProfile,
		now:        time.Now,
	}, nil
}

// Run imports every pending intake file. The returned error is reserved for
// failures that stop the whole run, such as an unreadable intake area;
// per-file failures are recorded in the result.
func (im *Importer) Run(ctx context.Context) (*model.ImportBatchResult, error) {
	result := &model.ImportBatchResult{
		RunID:     uuid.NewString(),
		StartedAt: im.now(),
	}
	log := im.logger.With(zap.String("run_id", result.RunID))

	pending, err := im.pendingFiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		log.Info("nothing pending", zap.String("intake", im.opts.IntakeArea))
		result.FinishedAt = im.now()
		return result, nil
	}

	for _, sf := range pending {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "importer: run cancelled")
		}

		fr, inserted := im.importFile(ctx, sf, log)
		result.Files = append(result.Files, fr)

		for _, r := range inserted {
			if strings.TrimSpace(r.PaymentNote) == "" {
				continue
			}
			result.PaymentNotes = append(result.PaymentNotes, model.NoteEntry{
				File:         sf.Name,
				LastName:     r.LastName,
				FirstName:    r.FirstName,
				DonationDate: r.DonationDate,
				Note:         r.PaymentNote,
			})
		}
	}

	result.FinishedAt = im.now()
	log.Info("import finished",
		zap.Int("files", len(result.Files)),
		zap.Int("failed", result.Failed()),
		zap.Int("inserted", result.Inserted()),
	)
	return result, nil
}

// pendingFiles lists and classifies the intake area, sorted by name
// case-insensitively.
func (im *Importer) pendingFiles(ctx context.Context) ([]model.SourceFile, error) {
	entries, err := im.files.List(ctx, im.opts.IntakeArea)
	if err != nil {
		return nil, eris.Wrap(err, "importer: list intake")
	}

	files := make([]model.SourceFile, 0, len(entries))
	for _, e := range entries {
		kind := model.KindUnsupported
		if p := config.Classify(e.Name, im.opts.Profiles); p != nil {
			kind = p.Kind
		}
		files = append(files, model.SourceFile{Name: e.Name, Kind: kind, ModTime: e.ModTime})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := strings.ToLower(files[i].Name), strings.ToLower(files[j].Name)
		if a != b {
			return a < b
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// importFile processes one intake file. It returns the file's result and the
// records that were inserted.
func (im *Importer) importFile(ctx context.Context, sf model.SourceFile, log *zap.Logger) (model.FileResult, []model.Record) {
	fr := model.FileResult{File: sf.Name, Kind: sf.Kind}
	log = log.With(zap.String("file", sf.Name), zap.String("kind", string(sf.Kind)))

	fail := func(err error) (model.FileResult, []model.Record) {
		fr.ErrorDetail = err.Error()
		log.Warn("file not imported", zap.Error(err))
		return fr, nil
	}

	profile := config.Classify(sf.Name, im.opts.Profiles)
	if profile == nil {
		return fail(eris.Wrapf(source.ErrUnsupported, "%s: no source profile matches", sf.Name))
	}

	adapter, err := im.adapterFor(profile, log)
	if err != nil {
		return fail(err)
	}

	data, err := im.files.Read(ctx, im.opts.IntakeArea, sf.Name)
	if err != nil {
		return fail(err)
	}

	batch, err := adapter.Read(ctx, sf.Name, data)
	if err != nil {
		return fail(err)
	}
	fr.TotalRowsRead = batch.TotalRowsRead

	recs := batch.Records
	for i := range recs {
		recs[i].SourceFile = sf.Name
	}
	SortNewestFirst(recs)

	if len(recs) > 0 {
		if err := im.ledger.InsertBlock(ctx, im.opts.InsertionPoint, recs); err != nil {
			return fail(eris.Wrapf(err, "%s: insert %d records", sf.Name, len(recs)))
		}
	}
	fr.RecordsInserted = len(recs)
	fr.Succeeded = true

	if err := im.files.Move(ctx, im.opts.IntakeArea, im.opts.ProcessedArea, sf.Name); err != nil {
		fr.ErrorDetail = eris.Wrapf(err, "%s: records inserted but file not moved to %s",
			sf.Name, im.opts.ProcessedArea).Error()
		log.Error("file imported but not moved", zap.Error(err), zap.Int("inserted", fr.RecordsInserted))
		return fr, recs
	}

	log.Info("file imported",
		zap.Int("rows", fr.TotalRowsRead),
		zap.Int("inserted", fr.RecordsInserted),
	)
	return fr, recs
}

// SortNewestFirst orders records by donation date, newest first. Records with
// the same date keep their relative order.
func SortNewestFirst(recs []model.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].DonationDate.After(recs[j].DonationDate)
	})
}

