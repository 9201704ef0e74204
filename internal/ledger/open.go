package ledger

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ginjaninja78/donation-ledger/internal/config"
)

// Open connects to the configured backend, applies migrations and returns the
// store wrapped in a Guarded.
func Open(ctx context.Context, cfg config.LedgerConfig) (*Guarded, error) {
	var (
		s   Store
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		s, err = NewSQLite(cfg.DSN)
	case "postgres", "postgresql", "pgx":
		s, err = NewPostgres(ctx, cfg.DSN, cfg.MaxConns)
	default:
		return nil, eris.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	return NewGuarded(s), nil
}
