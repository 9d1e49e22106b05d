// Package cache provides a generic TTL key-value store used to avoid
// redundant provider calls for identical queries within a freshness window.
package cache

import (
	"sync"
	"time"
)

// Entry carries the stored value together with its write timestamp. The
// timestamp is exported so callers can apply a shorter effective TTL than the
// store's own by checking age themselves.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Store is a TTL map with last-write-wins semantics. There is no size bound
// here; bounded eviction is the emoji service's concern.
type Store[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]Entry[V]
	now     func() time.Time
}

func New[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		ttl:     ttl,
		entries: make(map[string]Entry[V]),
		now:     time.Now,
	}
}

// Get returns the fresh value for key. An entry older than the store TTL is
// purged and reported as a miss.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if s.now().Sub(entry.StoredAt) > s.ttl {
		delete(s.entries, key)
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// GetEntry returns the raw entry regardless of freshness, letting callers
// apply their own age cutoff. Expired entries are still purged.
func (s *Store[V]) GetEntry(key string) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	if s.now().Sub(entry.StoredAt) > s.ttl {
		delete(s.entries, key)
		return Entry[V]{}, false
	}
	return entry, true
}

func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry[V]{Value: value, StoredAt: s.now()}
}

func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry[V])
}

func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
