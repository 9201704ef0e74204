package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/normalize"
	"github.com/ginjaninja78/donation-ledger/internal/validation"
	"github.com/ginjaninja78/donation-ledger/internal/xlsxparser"
)

// CheckLedger reads hand-kept check ledger workbooks. Its data region holds
// the 16 canonical columns in order, so rows map to records one to one.
type CheckLedger struct {
	settings config.LedgerSettings
	logger   *zap.Logger
}

// NewCheckLedger creates a check ledger adapter.
func NewCheckLedger(settings config.LedgerSettings, logger *zap.Logger) *CheckLedger {
	if logger == nil {
		logger = zap.L()
	}
	if settings.DataMarker == "" {
		settings.DataMarker = config.DefaultDataMarker
	}
	if settings.FirstDataRow < 1 {
		settings.FirstDataRow = config.DefaultFirstDataRow
	}
	return &CheckLedger{settings: settings, logger: logger}
}

// Read locates the data region and converts every non-blank row. A single
// invalid row fails the whole file; the error lists every bad row.
func (c *CheckLedger) Read(ctx context.Context, name string, data []byte) (Batch, error) {
	region, err := xlsxparser.ReadRegion(name, data, c.settings.DataMarker)
	if err != nil {
		return Batch{}, err
	}

	skip := c.settings.FirstDataRow - 1
	if skip > len(region.Rows) {
		skip = len(region.Rows)
	}

	var (
		batch Batch
		errs  []*validation.ValidationError
	)

	for i, raw := range region.Rows[skip:] {
		if err := ctx.Err(); err != nil {
			return Batch{}, eris.Wrap(err, "source: read cancelled")
		}
		if normalize.IsBlankRow(raw) {
			continue
		}
		batch.TotalRowsRead++

		row := canonicalWidth(raw)
		sheetRow := region.StartRow + skip + i

		if rowErrs := validation.ValidateRow(sheetRow, row); len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}

		rec, err := model.RecordFromRow(row)
		if err != nil {
			errs = append(errs, &validation.ValidationError{RowNumber: sheetRow, Field: "row", Message: err.Error()})
			continue
		}
		batch.Records = append(batch.Records, rec)
	}

	if len(errs) > 0 {
		return Batch{}, eris.Wrapf(ErrValidation, "%s: %s", name, validation.FormatErrors(errs))
	}

	c.logger.Debug("read check ledger",
		zap.String("file", name),
		zap.String("sheet", region.Sheet),
		zap.Int("rows", batch.TotalRowsRead),
	)

	return batch, nil
}

// canonicalWidth pads or truncates a region row to the canonical column count.
func canonicalWidth(raw []string) []string {
	row := make([]string, model.ColumnCount)
	copy(row, raw)
	return row
}
