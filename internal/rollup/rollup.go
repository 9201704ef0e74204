// Package rollup synthesizes one annual summary record (P4) per recurring
// donor for a tax year. The summaries enter the ledger through the same block
// insertion an import uses and are acknowledged like any other gift.
package rollup

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/importer"
	"github.com/ginjaninja78/donation-ledger/internal/model"
)

// Ledger is the part of the ledger store the generator uses.
type Ledger interface {
	RecurringInRange(ctx context.Context, from, to time.Time) ([]model.Record, error)
	HasRollup(ctx context.Context, last, first string, from, to time.Time) (bool, error)
	InsertBlock(ctx context.Context, at int, recs []model.Record) error
}

// Options configures a Generator.
type Options struct {
	InsertionPoint int

	// Now supplies the current time. Defaults to time.Now.
	Now func() time.Time
}

// Generator builds annual rollups.
type Generator struct {
	opts   Options
	ledger Ledger
	logger *zap.Logger
}

// New returns a Generator. The insertion point must be at least 1.
func New(opts Options, ledger Ledger, logger *zap.Logger) (*Generator, error) {
	if opts.InsertionPoint < 1 {
		return nil, eris.Wrapf(config.ErrMissingConfig,
			"ledger.insertion_point must be at least 1, got %d", opts.InsertionPoint)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Generator{opts: opts, ledger: ledger, logger: logger.Named("rollup")}, nil
}

// TaxYear returns year, or the calendar year before now when year is 0.
func (g *Generator) TaxYear(year int) int {
	if year != 0 {
		return year
	}
	return g.opts.Now().Year() - 1
}

// group accumulates one donor's recurring gifts.
type group struct {
	recs []model.Record
}

// Run builds and inserts the rollup records for a tax year (0 means the
// previous calendar year). Donors that already have a rollup dated in the
// tax year are skipped.
func (g *Generator) Run(ctx context.Context, year int) (*model.RollupResult, error) {
	result := &model.RollupResult{RunID: uuid.NewString(), TaxYear: g.TaxYear(year)}
	log := g.logger.With(zap.String("run_id", result.RunID), zap.Int("tax_year", result.TaxYear))

	from := time.Date(result.TaxYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(result.TaxYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	gifts, err := g.ledger.RecurringInRange(ctx, from, to)
	if err != nil {
		return nil, eris.Wrap(err, "rollup: read recurring gifts")
	}

	var order []string
	groups := make(map[string]*group)
	for _, r := range gifts {
		k := donorKey(r)
		grp, ok := groups[k]
		if !ok {
			grp = &group{}
			groups[k] = grp
			order = append(order, k)
		}
		grp.recs = append(grp.recs, r)
	}
	result.Groups = len(order)

	if len(order) == 0 {
		log.Info("no recurring gifts in tax year")
		return result, nil
	}

	var summaries []model.Record
	for _, k := range order {
		sum := summarize(groups[k].recs)

		exists, err := g.ledger.HasRollup(ctx, sum.LastName, sum.FirstName, from, to)
		if err != nil {
			return nil, eris.Wrapf(err, "rollup: check existing summary for %s", sum.DonorName())
		}
		if exists {
			result.SkippedExisting++
			log.Debug("donor already summarized", zap.String("donor", sum.DonorName()))
			continue
		}
		summaries = append(summaries, sum)
	}

	if len(summaries) > 0 {
		importer.SortNewestFirst(summaries)
		if err := g.ledger.InsertBlock(ctx, g.opts.InsertionPoint, summaries); err != nil {
			return nil, eris.Wrap(err, "rollup: insert summaries")
		}
	}
	result.RecordsInserted = len(summaries)
	result.Records = summaries

	log.Info("rollup finished",
		zap.Int("donors", result.Groups),
		zap.Int("inserted", result.RecordsInserted),
		zap.Int("skipped_existing", result.SkippedExisting),
	)
	return result, nil
}

func donorKey(r model.Record) string {
	return strings.ToLower(strings.TrimSpace(r.LastName)) + "\x00" + strings.ToLower(strings.TrimSpace(r.FirstName))
}

// summarize folds one donor's gifts into a P4 record: amounts summed, date
// and name taken from the latest gift, email from the latest gift that has
// one. Postal fields are left blank.
func summarize(recs []model.Record) model.Record {
	sorted := append([]model.Record(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DonationDate.Before(sorted[j].DonationDate)
	})

	latest := sorted[len(sorted)-1]
	out := model.Record{
		DonationDate:  latest.DonationDate,
		LastName:      latest.LastName,
		FirstName:     latest.FirstName,
		Gross:         decimal.Zero,
		Fee:           decimal.Zero,
		Net:           decimal.Zero,
		PaymentType:   model.PaymentAnnualRollup,
		PaymentSource: latest.PaymentSource,
	}
	for _, r := range sorted {
		out.Gross = out.Gross.Add(r.Gross)
		out.Fee = out.Fee.Add(r.Fee)
		out.Net = out.Net.Add(r.Net)
		if strings.TrimSpace(r.EmailAddress) != "" {
			out.EmailAddress = r.EmailAddress
		}
	}
	return out
}
