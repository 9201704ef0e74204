// Package ledger persists the donation ledger: an ordered list of canonical
// records plus a small table of named settings.
package ledger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ginjaninja78/donation-ledger/internal/model"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = eris.New("ledger: record not found")

// Store defines the persistence interface for the ledger.
type Store interface {
	// InsertBlock shifts every row at or below position at down by len(recs)
	// and writes recs at positions at..at+len(recs)-1, in one transaction.
	// Records without an ID get a new one; IDs, positions and CreatedAt are
	// written back into recs.
	InsertBlock(ctx context.Context, at int, recs []model.Record) error

	// Unacknowledged returns records with the Admin flag clear, top row first.
	Unacknowledged(ctx context.Context) ([]model.Record, error)

	// MarkAcknowledged sets the Admin flag. There is no way to clear it.
	MarkAcknowledged(ctx context.Context, id string) error

	// RecurringInRange returns P2 records dated within [from, to].
	RecurringInRange(ctx context.Context, from, to time.Time) ([]model.Record, error)

	// HasRollup reports whether a P4 record for the donor is dated within [from, to].
	HasRollup(ctx context.Context, last, first string, from, to time.Time) (bool, error)

	// All returns every record, top row first.
	All(ctx context.Context) ([]model.Record, error)

	// Named settings
	Setting(ctx context.Context, name string) (string, bool, error)
	PutSetting(ctx context.Context, name, value string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// dateLayout is the storage layout for donation dates.
const dateLayout = "2006-01-02"

// dayOf truncates t to its calendar date in UTC.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// recordColumns lists the stored columns in scan order.
const recordColumns = `id, position, source_file, created_at, acknowledged, donation_date,
	last_name, first_name, salutation, gross, fee, net, payment_type, payment_source,
	payment_note, email_address, street_address, city, state, zip_code`

type scannable interface {
	Scan(dest ...any) error
}
