// Package cache provides a small TTL-bounded map used to avoid repeated
// directory and role-definition lookups within a single run.
package cache

import (
	"sync"
	"time"
)

// ExpiringMap is a key/value store whose entries expire after a fixed TTL
// set at construction. Expired entries become invisible to Get immediately
// but are only removed during the next Insert (or an explicit Clear), which
// keeps the map bounded without a background sweeper. The expected key
// space, principal ids and scopes visited in one run, is small and short
// lived, so there is no LRU and no size cap.
type ExpiringMap[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]entry[V]
}

type entry[V any] struct {
	value   V
	expires time.Time
}

func NewExpiringMap[K comparable, V any](ttl time.Duration) *ExpiringMap[K, V] {
	return &ExpiringMap[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
	}
}

// Insert sweeps all expired entries, then stores value under key.
func (m *ExpiringMap[K, V]) Insert(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for k, e := range m.entries {
		if !e.expires.After(now) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = entry[V]{value: value, expires: now.Add(m.ttl)}
}

// Get returns the value for key if present and younger than the TTL.
func (m *ExpiringMap[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || !e.expires.After(time.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *ExpiringMap[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Len reports the number of stored entries, including expired entries that
// have not yet been swept.
func (m *ExpiringMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *ExpiringMap[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[K]entry[V])
}
