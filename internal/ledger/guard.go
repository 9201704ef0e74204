package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ginjaninja78/donation-ledger/internal/model"
)

// Guarded serializes every call to the wrapped store. At most one ledger
// operation is in flight per process.
type Guarded struct {
	mu    sync.Mutex
	inner Store
}

// NewGuarded wraps a store.
func NewGuarded(inner Store) *Guarded {
	return &Guarded{inner: inner}
}

func (g *Guarded) InsertBlock(ctx context.Context, at int, recs []model.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.InsertBlock(ctx, at, recs)
}

func (g *Guarded) Unacknowledged(ctx context.Context) ([]model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Unacknowledged(ctx)
}

func (g *Guarded) MarkAcknowledged(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.MarkAcknowledged(ctx, id)
}

func (g *Guarded) RecurringInRange(ctx context.Context, from, to time.Time) ([]model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.RecurringInRange(ctx, from, to)
}

func (g *Guarded) HasRollup(ctx context.Context, last, first string, from, to time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.HasRollup(ctx, last, first, from, to)
}

func (g *Guarded) All(ctx context.Context) ([]model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.All(ctx)
}

func (g *Guarded) Setting(ctx context.Context, name string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Setting(ctx, name)
}

func (g *Guarded) PutSetting(ctx context.Context, name, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.PutSetting(ctx, name, value)
}

func (g *Guarded) Migrate(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Migrate(ctx)
}

func (g *Guarded) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Close()
}
