package ledger

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ginjaninja78/donation-ledger/internal/model"
)

//go:embed migrations/postgres/schema.sql
var postgresSchema string

// Pool is the subset of *pgxpool.Pool the store uses, so tests can swap in pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns > 0 {
		pgxCfg.MaxConns = maxConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertBlock(ctx context.Context, at int, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if at < 1 {
		return eris.Errorf("postgres: insertion point %d is before the first row", at)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialize concurrent inserts so the shift and the block stay contiguous.
	if _, err := tx.Exec(ctx, `LOCK TABLE donations IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return eris.Wrap(err, "postgres: lock donations")
	}

	var last int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) FROM donations`).Scan(&last); err != nil {
		return eris.Wrap(err, "postgres: max position")
	}
	if at > last+1 {
		at = last + 1
	}

	if _, err := tx.Exec(ctx,
		`UPDATE donations SET position = position + $1 WHERE position >= $2`, len(recs), at,
	); err != nil {
		return eris.Wrap(err, "postgres: shift rows")
	}

	now := time.Now().UTC()
	for i := range recs {
		r := &recs[i]
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.Position = at + i
		r.CreatedAt = now

		_, err := tx.Exec(ctx,
			`INSERT INTO donations (`+recordColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
			r.ID, r.Position, r.SourceFile, now, r.Acknowledged, dayOf(r.DonationDate),
			r.LastName, r.FirstName, r.Salutation,
			r.Gross.String(), r.Fee.String(), r.Net.String(),
			string(r.PaymentType), string(r.PaymentSource), r.PaymentNote,
			r.EmailAddress, r.StreetAddress, r.City, r.State, r.ZipCode,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert record %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) Unacknowledged(ctx context.Context) ([]model.Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM donations WHERE acknowledged = FALSE ORDER BY position`)
}

func (s *PostgresStore) MarkAcknowledged(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE donations SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark acknowledged %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

func (s *PostgresStore) RecurringInRange(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	return s.query(ctx,
		`SELECT `+recordColumns+` FROM donations
		 WHERE payment_type = $1 AND donation_date >= $2 AND donation_date <= $3
		 ORDER BY position`,
		string(model.PaymentRecurring), dayOf(from), dayOf(to),
	)
}

func (s *PostgresStore) HasRollup(ctx context.Context, last, first string, from, to time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM donations
		 WHERE payment_type = $1 AND lower(last_name) = lower($2) AND lower(first_name) = lower($3)
		   AND donation_date >= $4 AND donation_date <= $5)`,
		string(model.PaymentAnnualRollup), last, first, dayOf(from), dayOf(to),
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: has rollup")
	}
	return exists, nil
}

func (s *PostgresStore) All(ctx context.Context) ([]model.Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM donations ORDER BY position`)
}

func (s *PostgresStore) Setting(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "postgres: get setting %s", name)
	}
	return value, true, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, name, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (name, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		name, value,
	)
	return eris.Wrapf(err, "postgres: put setting %s", name)
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query records")
	}
	defer rows.Close()

	var recs []model.Record
	for rows.Next() {
		r, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func scanPostgresRecord(row scannable) (model.Record, error) {
	var (
		r                      model.Record
		gross, fee, net        string
		paymentType, paySource string
	)
	err := row.Scan(
		&r.ID, &r.Position, &r.SourceFile, &r.CreatedAt, &r.Acknowledged, &r.DonationDate,
		&r.LastName, &r.FirstName, &r.Salutation, &gross, &fee, &net,
		&paymentType, &paySource, &r.PaymentNote,
		&r.EmailAddress, &r.StreetAddress, &r.City, &r.State, &r.ZipCode,
	)
	if err != nil {
		return model.Record{}, eris.Wrap(err, "postgres: scan record")
	}

	r.DonationDate = dayOf(r.DonationDate)
	if err := parseAmounts(&r, gross, fee, net); err != nil {
		return model.Record{}, err
	}
	r.PaymentType = model.PaymentType(paymentType)
	r.PaymentSource = model.PaymentSource(paySource)
	return r, nil
}
