// Package cache provides thread-safe caching utilities with time-based expiration.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	stored time.Time
}

// TTLCache is a thread-safe cache whose entries expire individually, ttl
// after they were stored. A ttl of zero or less never expires entries.
// At most limit entries are kept; when full, Set first drops expired
// entries and then the oldest one.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]entry[V]
	ttl   time.Duration
	limit int
	now   func() time.Time
}

// DefaultLimit bounds the number of entries of a cache created by New.
const DefaultLimit = 1024

// New creates an empty TTLCache.
func New[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return NewWithLimit[K, V](ttl, DefaultLimit)
}

// NewWithLimit creates an empty TTLCache holding at most limit entries.
func NewWithLimit[K comparable, V any](ttl time.Duration, limit int) *TTLCache[K, V] {
	if limit < 1 {
		limit = 1
	}
	return &TTLCache[K, V]{
		data:  make(map[K]entry[V]),
		ttl:   ttl,
		limit: limit,
		now:   time.Now,
	}
}

// Get retrieves a value that is present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || c.expiredLocked(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value and restarts its TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[key]; !ok && len(c.data) >= c.limit {
		c.pruneLocked()
		if len(c.data) >= c.limit {
			c.evictOldestLocked()
		}
	}
	c.data[key] = entry[V]{value: value, stored: c.now()}
}

// GetOrCompute returns the cached value for key, computing and storing
// it with fn on a miss. fn runs without the lock held, so concurrent
// misses for the same key may compute it more than once.
func (c *TTLCache[K, V]) GetOrCompute(key K, fn func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := fn()
	c.Set(key, v)
	return v
}

// Prune removes expired entries and returns how many were removed.
func (c *TTLCache[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

// Invalidate clears all cached data.
func (c *TTLCache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// expiredLocked MUST be called with at least a read lock held.
func (c *TTLCache[K, V]) expiredLocked(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.stored) >= c.ttl
}

func (c *TTLCache[K, V]) pruneLocked() int {
	n := 0
	for k, e := range c.data {
		if c.expiredLocked(e) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

func (c *TTLCache[K, V]) evictOldestLocked() {
	var oldest K
	var at time.Time
	first := true
	for k, e := range c.data {
		if first || e.stored.Before(at) {
			oldest, at, first = k, e.stored, false
		}
	}
	if !first {
		delete(c.data, oldest)
	}
}
