package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// DefaultTTL applies when New is given a non-positive TTL.
const DefaultTTL = 600 * time.Second

// Clock returns the current time. Injected for deterministic tests.
type Clock func() time.Time

// Option configures a TTLCache.
type Option func(*TTLCache)

// WithClock replaces time.Now as the cache's time source.
func WithClock(clock Clock) Option {
	return func(c *TTLCache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// Stats is a point-in-time classification of stored entries.
type Stats struct {
	Total   int
	Valid   int
	Expired int
	TTL     time.Duration
}

// TTLCache maps fingerprints to values stamped with their insertion time. Every entry shares
// one TTL. An entry is valid while now-insertedAt < TTL; stale entries are removed on the next
// Get for their key. All methods run under a single mutex.
type TTLCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  Clock
}

// cacheEntry stores a value with its insertion timestamp.
type cacheEntry struct {
	value      any
	insertedAt time.Time
}

// New creates a TTLCache with the given TTL.
func New(ttl time.Duration, opts ...Option) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTLCache{
		data: make(map[string]cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *TTLCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key if present and fresh. A stale entry is deleted before
// returning a miss.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !c.validLocked(entry, c.now()) {
		delete(c.data, key)
		observability.CacheEvictionsTotal.WithLabelValues("read").Inc()
		return nil, false
	}
	return entry.value, true
}

// Put stores value under key, replacing any previous entry and stamping the current time.
func (c *TTLCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:      value,
		insertedAt: c.now(),
	}
}

// Clear removes every entry and returns how many were removed.
func (c *TTLCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.data)
	c.data = make(map[string]cacheEntry)
	return n
}

// Stats classifies entries against the current time without removing anything.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	s := Stats{Total: len(c.data), TTL: c.ttl}
	for _, entry := range c.data {
		if c.validLocked(entry, now) {
			s.Valid++
		} else {
			s.Expired++
		}
	}
	return s
}

// Keys returns up to limit stored keys in lexicographic order. limit <= 0 returns all keys.
func (c *TTLCache) Keys(limit int) []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Sweep removes all expired entries and returns the count removed.
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, entry := range c.data {
		if !c.validLocked(entry, now) {
			delete(c.data, k)
			removed++
		}
	}
	if removed > 0 {
		observability.CacheEvictionsTotal.WithLabelValues("sweep").Add(float64(removed))
	}
	return removed
}

// validLocked reports whether entry is still within TTL at now. Caller holds c.mu.
func (c *TTLCache) validLocked(entry cacheEntry, now time.Time) bool {
	return now.Sub(entry.insertedAt) < c.ttl
}
