package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/donation-ledger/internal/config"
	"github.com/ginjaninja78/donation-ledger/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(last string, date time.Time, pt model.PaymentType, gross string) model.Record {
	g := decimal.RequireFromString(gross)
	return model.Record{
		DonationDate:  date,
		LastName:      last,
		FirstName:     "Pat",
		Gross:         g,
		Net:           g,
		PaymentType:   pt,
		PaymentSource: model.SourcePayPal,
		EmailAddress:  "pat@example.org",
	}
}

func lastNames(recs []model.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.LastName
	}
	return out
}

func TestSQLite_MigrateTwice(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_InsertBlockAssignsIDs(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	recs := []model.Record{
		rec("A", day(2024, 3, 2), model.PaymentOneTime, "10"),
		rec("B", day(2024, 3, 1), model.PaymentOneTime, "20.50"),
	}
	require.NoError(t, s.InsertBlock(ctx, 1, recs))

	assert.NotEmpty(t, recs[0].ID)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
	assert.Equal(t, 1, recs[0].Position)
	assert.Equal(t, 2, recs[1].Position)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, recs[0].ID, all[0].ID)
	assert.True(t, decimal.RequireFromString("20.50").Equal(all[1].Gross))
	assert.True(t, day(2024, 3, 1).Equal(all[1].DonationDate))
	assert.Equal(t, model.SourcePayPal, all[1].PaymentSource)
	assert.False(t, all[1].CreatedAt.IsZero())
}

// Later blocks land above earlier ones even when their dates are older;
// blocks are not merged into date order.
func TestSQLite_InsertBlockPrependsWithoutMerging(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBlock(ctx, 1, []model.Record{
		rec("Newer1", day(2024, 5, 2), model.PaymentOneTime, "1"),
		rec("Newer2", day(2024, 5, 1), model.PaymentOneTime, "1"),
	}))
	require.NoError(t, s.InsertBlock(ctx, 1, []model.Record{
		rec("Older1", day(2024, 1, 2), model.PaymentCheck, "1"),
		rec("Older2", day(2024, 1, 1), model.PaymentCheck, "1"),
	}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Older1", "Older2", "Newer1", "Newer2"}, lastNames(all))
	for i, r := range all {
		assert.Equal(t, i+1, r.Position)
	}
}

func TestSQLite_InsertBlockBelowHeader(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBlock(ctx, 1, []model.Record{
		rec("Top", day(2024, 1, 1), model.PaymentOneTime, "1"),
		rec("Second", day(2024, 1, 1), model.PaymentOneTime, "1"),
	}))
	require.NoError(t, s.InsertBlock(ctx, 2, []model.Record{rec("Middle", day(2024, 2, 1), model.PaymentOneTime, "1")}))
	// Past the end is clamped to append.
	require.NoError(t, s.InsertBlock(ctx, 99, []model.Record{rec("Bottom", day(2024, 2, 1), model.PaymentOneTime, "1")}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Top", "Middle", "Second", "Bottom"}, lastNames(all))
	assert.Equal(t, 4, all[3].Position)

	assert.Error(t, s.InsertBlock(ctx, 0, []model.Record{rec("X", day(2024, 2, 1), model.PaymentOneTime, "1")}))
}

func TestSQLite_AcknowledgeIsMonotonic(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	recs := []model.Record{
		rec("A", day(2024, 1, 3), model.PaymentOneTime, "1"),
		rec("B", day(2024, 1, 2), model.PaymentOneTime, "1"),
		rec("C", day(2024, 1, 1), model.PaymentOneTime, "1"),
	}
	require.NoError(t, s.InsertBlock(ctx, 1, recs))

	require.NoError(t, s.MarkAcknowledged(ctx, recs[1].ID))
	require.NoError(t, s.MarkAcknowledged(ctx, recs[1].ID))

	un, err := s.Unacknowledged(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, lastNames(un))

	err = s.MarkAcknowledged(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_RecurringAndRollupQueries(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBlock(ctx, 1, []model.Record{
		rec("Lee", day(2024, 12, 31), model.PaymentRecurring, "10"),
		rec("Lee", day(2024, 1, 1), model.PaymentRecurring, "10"),
		rec("Lee", day(2023, 12, 31), model.PaymentRecurring, "10"),
		rec("Kim", day(2024, 6, 1), model.PaymentOneTime, "10"),
		rec("ROY", day(2024, 12, 31), model.PaymentAnnualRollup, "120"),
	}))

	from, to := day(2024, 1, 1), day(2024, 12, 31)

	got, err := s.RecurringInRange(ctx, from, to)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	has, err := s.HasRollup(ctx, "roy", "PAT", from, to)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasRollup(ctx, "Lee", "Pat", from, to)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = s.HasRollup(ctx, "Roy", "Pat", day(2025, 1, 1), day(2025, 12, 31))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLite_Settings(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, ok, err := s.Setting(ctx, "intake_folder")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutSetting(ctx, "intake_folder", "/a"))
	require.NoError(t, s.PutSetting(ctx, "intake_folder", "/b"))

	v, ok, err := s.Setting(ctx, "intake_folder")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/b", v)
}

func TestOpen_SQLiteGuarded(t *testing.T) {
	ctx := context.Background()
	g, err := Open(ctx, config.LedgerConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "l.db")})
	require.NoError(t, err)
	defer g.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.InsertBlock(ctx, 1, []model.Record{
				rec("X", day(2024, 1, 1), model.PaymentOneTime, "1"),
				rec("Y", day(2024, 1, 1), model.PaymentOneTime, "1"),
			}))
		}()
	}
	wg.Wait()

	all, err := g.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 16)
	for i, r := range all {
		assert.Equal(t, i+1, r.Position)
		// Blocks stay contiguous.
		if i%2 == 0 {
			assert.Equal(t, "X", r.LastName)
		} else {
			assert.Equal(t, "Y", r.LastName)
		}
	}

	_, err = Open(ctx, config.LedgerConfig{Driver: "oracle"})
	require.Error(t, err)
}
