// Package resultcache implements a bounded cache of resolved results
// where entries expire after a write TTL or an access TTL, whichever
// fires first, and where the least recently used entry is evicted
// when the cache is full.
package resultcache

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/ooni/geoquery/internal/model"
)

// Config contains the [*Cache] settings.
type Config struct {
	// MaxEntries is the OPTIONAL maximum number of entries. When zero
	// or negative, the cache is only bounded by expiration.
	MaxEntries int

	// ExpireAfterWrite is the OPTIONAL write TTL. When zero, entries
	// do not expire based on their write time.
	ExpireAfterWrite time.Duration

	// ExpireAfterAccess is the OPTIONAL access TTL. When zero, entries
	// do not expire based on their last access time.
	ExpireAfterAccess time.Duration

	// TimeNow is the OPTIONAL function returning the current time. When
	// nil, we use [time.Now].
	TimeNow func() time.Time
}

// Stats contains the cache statistics.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
}

// HitRate returns the fraction of lookups that were hits or zero.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total <= 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf(
		"hits=%d misses=%d hit_rate=%.4f evictions=%d expirations=%d",
		s.Hits, s.Misses, s.HitRate(), s.Evictions, s.Expirations,
	)
}

// entry is a cache entry.
type entry struct {
	value      *model.IPInfo
	writtenAt  time.Time
	accessedAt time.Time
}

// Cache is the result cache.
//
// The zero value is invalid; construct using [New].
//
// It's safe to use this struct from multiple goroutine contexts.
type Cache struct {
	config Config
	lru    *lru.Cache

	// entries mirrors lru so we can scan for expired entries.
	entries map[string]*entry

	// mu protects lru, entries and stats.
	mu    sync.Mutex
	stats Stats
}

// New creates a new [*Cache].
func New(config Config) *Cache {
	c := &Cache{
		config:  config,
		lru:     lru.New(max(config.MaxEntries, 0)),
		entries: make(map[string]*entry),
	}
	c.lru.OnEvicted = func(key lru.Key, _ any) {
		delete(c.entries, key.(string))
	}
	return c
}

func (c *Cache) now() time.Time {
	if c.config.TimeNow != nil {
		return c.config.TimeNow()
	}
	return time.Now()
}

// expired returns whether the entry is expired at the given time.
func (c *Cache) expired(e *entry, now time.Time) bool {
	if ttl := c.config.ExpireAfterWrite; ttl > 0 && now.Sub(e.writtenAt) > ttl {
		return true
	}
	if ttl := c.config.ExpireAfterAccess; ttl > 0 && now.Sub(e.accessedAt) > ttl {
		return true
	}
	return false
}

// Get returns the value associated with key, if present and not expired.
func (c *Cache) Get(key string) (*model.IPInfo, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, found := c.lru.Get(key)
	if !found {
		c.stats.Misses++
		return nil, false
	}
	e := raw.(*entry)
	if c.expired(e, now) {
		c.lru.Remove(key)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}
	e.accessedAt = now
	c.stats.Hits++
	return e.value, true
}

// Put associates value to key, possibly evicting the least recently used entry.
func (c *Cache) Put(key string, value *model.IPInfo) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.lru.Get(key); !found && c.config.MaxEntries > 0 && c.lru.Len() >= c.config.MaxEntries {
		c.stats.Evictions++
	}
	e := &entry{value: value, writtenAt: now, accessedAt: now}
	c.lru.Add(key, e)
	c.entries[key] = e
}

// Invalidate removes key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	c.lru.Remove(key)
	c.mu.Unlock()
}

// InvalidateAll removes all the entries from the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.lru.Clear()
	clear(c.entries)
	c.mu.Unlock()
}

// Len removes the expired entries and returns the number of live entries.
func (c *Cache) Len() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked(now)
	return c.lru.Len()
}

// purgeLocked removes the expired entries. The caller must hold mu.
func (c *Cache) purgeLocked(now time.Time) {
	for key, e := range c.entries {
		if c.expired(e, now) {
			c.lru.Remove(key) // also deletes from c.entries
			c.stats.Expirations++
		}
	}
}

// Stats returns a snapshot of the statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// String implements fmt.Stringer.
func (c *Cache) String() string {
	return c.Stats().String()
}
