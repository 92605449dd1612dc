package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a thread-safe, in-process Store implementation. It is
// intended for tests and single-process deployments; markers do not survive
// a restart.
type InMemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		expires: make(map[string]time.Time),
	}
}

// SetIfAbsent writes a first-seen marker under the store mutex, which makes
// the check-and-set atomic within the process. Expired markers count as
// absent and are overwritten in place.
func (s *InMemoryStore) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.expires[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.expires[key] = now.Add(ttl)
	return true, nil
}

// Len reports the number of markers held, expired ones included. Useful in
// tests.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}
