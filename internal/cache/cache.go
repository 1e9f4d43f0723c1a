// Package cache provides an in-memory key/value cache with per-entry TTL.
//
// Expired entries are hidden from Get but kept in place until overwritten;
// GetStale can still see them, which is what lets the orchestrator serve
// last-known-good data when the upstream API is down.
package cache

import (
	"sync"
	"time"
)

// Entry is a stored value together with its bookkeeping timestamps.
type Entry[V any] struct {
	Value     V
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Cache is a mutex-guarded TTL cache. The key space here is small (bounded by
// state x district x period combinations) so there is no capacity bound and
// no LRU.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]Entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a cache whose Set uses defaultTTL.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]Entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (c *Cache[V]) WithNow(now func() time.Time) *Cache[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.GetEntry(key)
	return e.Value, ok
}

// GetEntry is Get with the entry's timestamps included, for callers that
// report cache age. Expired entries are hidden, not removed: GetStale must
// still be able to find them after an upstream failure.
func (c *Cache[V]) GetEntry(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.ExpiresAt) {
		return Entry[V]{}, false
	}
	return e, true
}

// GetStale returns the entry for key even if it has expired. It never evicts.
// Callers use this only on the upstream-failure path and must label the
// result as stale.
func (c *Cache[V]) GetStale(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return e, ok
}

// Set stores value under key with the default TTL, replacing any existing
// entry and resetting its expiry from the current time.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry[V]{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[V])
}

// Len reports the number of physically stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
