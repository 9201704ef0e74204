// =============================================================================
// Donation Ledger - Source Adapters
// =============================================================================
//
// A source adapter reads one intake file and returns canonical records. Two
// adapters exist:
//   - PayPal: a processor CSV export, filtered to donation transactions
//   - CheckLedger: a hand-kept XLSX workbook already in canonical order
//
// Every adapter error is file-level: the orchestrator leaves the file in the
// intake area and reports the error. A file with no matching rows is an empty
// batch, not an error.
//
// =============================================================================

package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/model"
	"github.com/ginjaninja78/donation-ledger/internal/xlsxparser"
)

var (
	// ErrColumnCount is returned when an export header has the wrong number
	// of columns, which usually means the processor changed its format.
	ErrColumnCount = eris.New("source: unexpected column count")

	// ErrMissingMarker is returned when a workbook lacks the data marker.
	ErrMissingMarker = xlsxparser.ErrMissingMarker

	// ErrValidation is returned when any row of a ledger file is invalid.
	ErrValidation = eris.New("source: validation failed")

	// ErrUnsupported is returned for files no source profile claims.
	ErrUnsupported = eris.New("source: unsupported file")
)

// Batch is the result of reading one file.
type Batch struct {
	// TotalRowsRead counts non-blank data rows, matched or not.
	TotalRowsRead int

	// Records holds the rows that became records, in file order.
	Records []model.Record
}

// Adapter reads one intake file.
type Adapter interface {
	Read(ctx context.Context, name string, data []byte) (Batch, error)
}

// ForProfile returns the adapter for a source profile.
func ForProfile(p *config.SourceProfile, logger *zap.Logger) (Adapter, error) {
	if p == nil {
		return nil, ErrUnsupported
	}
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.With(zap.String("source", p.SourceName))

	switch p.Kind {
	case model.KindPayPalExport:
		return NewPayPal(p.CSVSettings, logger), nil
	case model.KindCheckLedger:
		return NewCheckLedger(p.LedgerSettings, logger), nil
	default:
		return nil, eris.Wrapf(ErrUnsupported, "kind %q", p.Kind)
	}
}
