package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/donation-ledger/internal/model"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	src, err := iofs.New(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return eris.Wrap(err, "sqlite: migration source")
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return eris.Wrap(err, "sqlite: migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return eris.Wrap(err, "sqlite: migrate init")
	}
	// m.Close would close s.db through the driver, so it is not called.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertBlock(ctx context.Context, at int, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if at < 1 {
		return eris.Errorf("sqlite: insertion point %d is before the first row", at)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var last int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM donations`).Scan(&last); err != nil {
		return eris.Wrap(err, "sqlite: max position")
	}
	if at > last+1 {
		at = last + 1
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE donations SET position = position + ? WHERE position >= ?`, len(recs), at,
	); err != nil {
		return eris.Wrap(err, "sqlite: shift rows")
	}

	now := time.Now().UTC()
	for i := range recs {
		r := &recs[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.Position = at + i
		r.CreatedAt = now

		_, err := tx.ExecContext(ctx,
			`INSERT INTO donations (`+recordColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Position, r.SourceFile, now.Format(time.RFC3339Nano), r.Acknowledged,
			dayOf(r.DonationDate).Format(dateLayout),
			r.LastName, r.FirstName, r.Salutation,
			r.Gross.String(), r.Fee.String(), r.Net.String(),
			string(r.PaymentType), string(r.PaymentSource), r.PaymentNote,
			r.EmailAddress, r.StreetAddress, r.City, r.State, r.ZipCode,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert record %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) Unacknowledged(ctx context.Context) ([]model.Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM donations WHERE acknowledged = 0 ORDER BY position`)
}

func (s *SQLiteStore) MarkAcknowledged(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE donations SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark acknowledged %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

func (s *SQLiteStore) RecurringInRange(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	return s.query(ctx,
		`SELECT `+recordColumns+` FROM donations
		 WHERE payment_type = ? AND donation_date >= ? AND donation_date <= ?
		 ORDER BY position`,
		string(model.PaymentRecurring), dayOf(from).Format(dateLayout), dayOf(to).Format(dateLayout),
	)
}

func (s *SQLiteStore) HasRollup(ctx context.Context, last, first string, from, to time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donations
		 WHERE payment_type = ? AND lower(last_name) = lower(?) AND lower(first_name) = lower(?)
		   AND donation_date >= ? AND donation_date <= ?`,
		string(model.PaymentAnnualRollup), last, first,
		dayOf(from).Format(dateLayout), dayOf(to).Format(dateLayout),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: has rollup")
	}
	return n > 0, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]model.Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM donations ORDER BY position`)
}

func (s *SQLiteStore) Setting(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "sqlite: get setting %s", name)
	}
	return value, true, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrapf(err, "sqlite: put setting %s", name)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query records")
	}
	defer rows.Close()

	var recs []model.Record
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func scanSQLiteRecord(row scannable) (model.Record, error) {
	var (
		r                      model.Record
		createdAt, date        string
		gross, fee, net        string
		paymentType, paySource string
	)
	err := row.Scan(
		&r.ID, &r.Position, &r.SourceFile, &createdAt, &r.Acknowledged, &date,
		&r.LastName, &r.FirstName, &r.Salutation, &gross, &fee, &net,
		&paymentType, &paySource, &r.PaymentNote,
		&r.EmailAddress, &r.StreetAddress, &r.City, &r.State, &r.ZipCode,
	)
	if err != nil {
		return model.Record{}, eris.Wrap(err, "sqlite: scan record")
	}

	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return model.Record{}, eris.Wrapf(err, "sqlite: record %s created_at", r.ID)
	}
	if r.DonationDate, err = time.Parse(dateLayout, date); err != nil {
		return model.Record{}, eris.Wrapf(err, "sqlite: record %s donation_date", r.ID)
	}
	if err := parseAmounts(&r, gross, fee, net); err != nil {
		return model.Record{}, err
	}
	r.PaymentType = model.PaymentType(paymentType)
	r.PaymentSource = model.PaymentSource(paySource)
	return r, nil
}

// parseAmounts decodes the stored decimal strings into r.
func parseAmounts(r *model.Record, gross, fee, net string) error {
	var err error
	if r.Gross, err = decimal.NewFromString(gross); err != nil {
		return eris.Wrapf(err, "ledger: record %s gross", r.ID)
	}
	if r.Fee, err = decimal.NewFromString(fee); err != nil {
		return eris.Wrapf(err, "ledger: record %s fee", r.ID)
	}
	if r.Net, err = decimal.NewFromString(net); err != nil {
		return eris.Wrapf(err, "ledger: record %s net", r.ID)
	}
	return nil
}
