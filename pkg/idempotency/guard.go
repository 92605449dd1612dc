// Package idempotency provides the deduplication gate that guarantees
// at-most-one logical processing per inbound provider event, under the
// assumption that providers redeliver the same event arbitrarily many times.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL bounds the lifetime of a first-seen marker when the caller does
// not specify one. Provider retry storms are measured in minutes; a day of
// memory is comfortably past any redelivery window.
const DefaultTTL = 24 * time.Hour

// ErrStoreUnavailable wraps any failure to reach the backing store. It is
// surfaced distinctly so callers can choose a fail-open or fail-closed
// policy explicitly; a store outage is never reported as "not a duplicate".
var ErrStoreUnavailable = errors.New("idempotency store unavailable")

// Store is the key-value capability the guard is built on. SetIfAbsent must
// be atomic against the backing store: two concurrent calls for the same key
// must not both observe "stored".
type Store interface {
	// SetIfAbsent writes a first-seen marker for key with the given TTL.
	// It returns true if the marker was written (first sighting) and false
	// if the key already existed.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Guard is the deduplication gate. It is safe for concurrent use to the
// extent its Store is.
type Guard struct {
	store  Store
	logger zerolog.Logger
}

// NewGuard creates a Guard over the given store.
func NewGuard(store Store, logger zerolog.Logger) (*Guard, error) {
	if store == nil {
		return nil, fmt.Errorf("idempotency store cannot be nil")
	}
	return &Guard{
		store:  store,
		logger: logger.With().Str("component", "IdempotencyGuard").Logger(),
	}, nil
}

// CheckAndSet records key as seen and reports whether it had been seen
// before. A non-positive ttl falls back to DefaultTTL. Store failures are
// returned wrapped in ErrStoreUnavailable and must not be treated as "new".
func (g *Guard) CheckAndSet(ctx context.Context, key string, ttl time.Duration) (duplicate bool, err error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	stored, err := g.store.SetIfAbsent(ctx, key, ttl)
	if err != nil {
		g.logger.Error().Err(err).Str("key", key).Msg("Idempotency store check failed.")
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if !stored {
		g.logger.Debug().Str("key", key).Msg("Duplicate event absorbed.")
		return true, nil
	}
	return false, nil
}
