// Package inmem implements the gateway Store in process memory. It backs
// single-instance deployments without Redis and keeps tests hermetic.
// State is not shared across gateway instances.
package inmem

import (
	"context"
	"sync"
	"time"
)

// Store is an in-memory implementation of gateway.Store with per-key TTLs.
// The clock is injectable for deterministic testing.
type Store struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	value     string
	count     int64
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewStore creates an in-memory store using the given clock.
func NewStore(clock func() time.Time) *Store {
	return &Store{
		now:     clock,
		entries: make(map[string]*entry),
	}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// IncrementWithTTL increments the counter at key. The TTL is attached only
// when the counter is created; later increments leave the deadline alone.
func (s *Store) IncrementWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		e = &entry{}
		if ttl > 0 {
			e.expiresAt = now.Add(ttl)
		}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Cleanup removes expired entries. Run it periodically; reads already
// ignore expired entries, this just bounds memory.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// EntryCount returns the number of live entries (for testing).
func (s *Store) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
