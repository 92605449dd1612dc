package idempotency_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkbase-io/go-chatpipe/pkg/idempotency"
)

// failingStore simulates an unreachable backing store.
type failingStore struct {
	err error
}

func (f *failingStore) SetIfAbsent(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return false, f.err
}

// recordingStore captures the TTL the guard passes down.
type recordingStore struct {
	mu      sync.Mutex
	lastTTL time.Duration
	inner   *idempotency.InMemoryStore
}

func (r *recordingStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	r.lastTTL = ttl
	r.mu.Unlock()
	return r.inner.SetIfAbsent(ctx, key, ttl)
}

func TestGuard_NewThenDuplicateThenExpired(t *testing.T) {
	ctx := context.Background()
	guard, err := idempotency.NewGuard(idempotency.NewInMemoryStore(), zerolog.Nop())
	require.NoError(t, err)

	const key = "dedup:telegram:1::42"
	ttl := 50 * time.Millisecond

	duplicate, err := guard.CheckAndSet(ctx, key, ttl)
	require.NoError(t, err)
	assert.False(t, duplicate, "first sighting must be new")

	duplicate, err = guard.CheckAndSet(ctx, key, ttl)
	require.NoError(t, err)
	assert.True(t, duplicate, "second sighting must be a duplicate")

	// Acceptable sleep: we are explicitly verifying a time-based feature.
	time.Sleep(80 * time.Millisecond)

	duplicate, err = guard.CheckAndSet(ctx, key, ttl)
	require.NoError(t, err)
	assert.False(t, duplicate, "after TTL expiry the key must read as new again")
}

func TestGuard_DistinctKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	guard, err := idempotency.NewGuard(idempotency.NewInMemoryStore(), zerolog.Nop())
	require.NoError(t, err)

	duplicate, err := guard.CheckAndSet(ctx, "key-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, duplicate)

	duplicate, err = guard.CheckAndSet(ctx, "key-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, duplicate, "a different key must not read as a duplicate")
}

func TestGuard_ConcurrentCheckAndSetAdmitsExactlyOne(t *testing.T) {
	ctx := context.Background()
	guard, err := idempotency.NewGuard(idempotency.NewInMemoryStore(), zerolog.Nop())
	require.NoError(t, err)

	const workers = 32
	start := make(chan struct{})
	results := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			duplicate, err := guard.CheckAndSet(ctx, "dedup:whatsapp:99::same-msg", time.Minute)
			assert.NoError(t, err)
			results <- duplicate
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	newCount := 0
	for duplicate := range results {
		if !duplicate {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount, "racing checks on one key must admit exactly one caller")
}

func TestGuard_StoreFailureIsSurfaced(t *testing.T) {
	storeErr := errors.New("connection refused")
	guard, err := idempotency.NewGuard(&failingStore{err: storeErr}, zerolog.Nop())
	require.NoError(t, err)

	duplicate, err := guard.CheckAndSet(context.Background(), "any", time.Minute)

	require.Error(t, err)
	assert.True(t, errors.Is(err, idempotency.ErrStoreUnavailable),
		"store outages must be distinguishable from a dedup miss")
	assert.True(t, errors.Is(err, storeErr), "the underlying cause must be preserved")
	assert.False(t, duplicate, "an errored check must never report duplicate")
}

func TestGuard_ZeroTTLUsesDefault(t *testing.T) {
	store := &recordingStore{inner: idempotency.NewInMemoryStore()}
	guard, err := idempotency.NewGuard(store, zerolog.Nop())
	require.NoError(t, err)

	_, err = guard.CheckAndSet(context.Background(), "k", 0)
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, idempotency.DefaultTTL, store.lastTTL)
}

func TestGuard_NilStoreRejected(t *testing.T) {
	_, err := idempotency.NewGuard(nil, zerolog.Nop())
	require.Error(t, err)
}
