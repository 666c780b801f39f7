// Package ledger gives the raw counter store its reservation semantics:
// one decimal-encoded counter of remaining units per resource key.
package ledger

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/you/reserveq/internal/kvstore"
)

type Ledger struct {
	store kvstore.Store
	log   *zap.Logger
}

func New(store kvstore.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Reservation is the outcome of a single TryReserveOne call.
type Reservation struct {
	Reserved  bool
	Remaining int64
}

// Initialize sets the available quantity for a resource, overwriting any
// prior value. Called once per resource at process start.
func (l *Ledger) Initialize(ctx context.Context, key string, quantity int64) error {
	if err := l.store.Set(ctx, key, strconv.FormatInt(quantity, 10)); err != nil {
		return err
	}
	l.log.Info("ledger initialized", zap.String("resource", key), zap.Int64("available", quantity))
	return nil
}

// CurrentAvailable returns the stored counter. An absent or unparsable value
// reads as 0; only a store failure is an error.
func (l *Ledger) CurrentAvailable(ctx context.Context, key string) (int64, error) {
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		l.log.Warn("ledger value unreadable, treating as 0",
			zap.String("resource", key), zap.String("raw", raw))
		return 0, nil
	}
	return n, nil
}

// TryReserveOne is the only mutating primitive: read the counter, and if it
// is positive write back one less. The read-then-write is not atomic on its
// own; callers serialize it by running it inside a queued job whose topic
// concurrency bounds the races (concurrency 1 makes it exact).
func (l *Ledger) TryReserveOne(ctx context.Context, key string) (Reservation, error) {
	current, err := l.CurrentAvailable(ctx, key)
	if err != nil {
		return Reservation{}, err
	}
	if current == 0 {
		return Reservation{Reserved: false, Remaining: 0}, nil
	}
	remaining := current - 1
	if err := l.store.Set(ctx, key, strconv.FormatInt(remaining, 10)); err != nil {
		return Reservation{}, err
	}
	return Reservation{Reserved: true, Remaining: remaining}, nil
}
