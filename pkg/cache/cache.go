// Package cache provides an in-memory TTL cache for metrics report
// responses. Reports aggregate over the whole timeline and are requested
// repeatedly by dashboards; caching them briefly keeps dashboard refreshes
// off the database. The cache is an explicit component with an explicit
// TTL, wired in by the server, never ambient global state.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value      []byte
	expiresAt  time.Time
	insertedAt time.Time
}

// TTLCache is a thread-safe in-memory cache with TTL and max-size
// eviction. At capacity, the oldest entry by insertion time is evicted.
// Expired entries are lazily evicted on Get.
type TTLCache struct {
	mu      sync.Mutex
	items   map[string]*entry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLCache creates a cache with the given maximum size and TTL.
func NewTTLCache(maxSize int, ttl time.Duration) *TTLCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TTLCache{
		items:   make(map[string]*entry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a cached value by key. Returns (nil, false) if the key is
// missing or expired.
func (c *TTLCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value, evicting the oldest entry when at capacity.
func (c *TTLCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.items {
			if oldestKey == "" || e.insertedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.insertedAt
			}
		}
		delete(c.items, oldestKey)
	}

	c.items[key] = &entry{
		value:      value,
		expiresAt:  now.Add(c.ttl),
		insertedAt: now,
	}
}

// InvalidateAll empties the cache. Called whenever an event lands, since
// any ingested deployment can change any report.
func (c *TTLCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry, c.maxSize)
}

// Len returns the number of cached entries, including not-yet-evicted
// expired ones.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
