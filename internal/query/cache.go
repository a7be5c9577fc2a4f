package query

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultCache is the TTL+LRU cache backing §4.I step 5. Expiry is
// checked lazily on Get rather than by a background sweep, honoring a
// configurable TTL (default 3 min) without adding a second goroutine
// solely for eviction; golang-lru/v2 already evicts on size via
// Config.Cache.SearchMaxSize.
type ResultCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, cacheEntry]
	ttl time.Duration
}

type cacheEntry struct {
	results   []Result
	expiresAt time.Time
}

// NewResultCache builds a cache bounded to maxSize entries, each valid
// for ttl after insertion.
func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c, _ := lru.New[string, cacheEntry](maxSize)
	return &ResultCache{lru: c, ttl: ttl}
}

// Get returns the cached results for fingerprint, if present and not
// yet expired.
func (c *ResultCache) Get(fingerprint string) ([]Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(fingerprint)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(fingerprint)
		return nil, false
	}
	return entry.results, true
}

// Set stores results under fingerprint with this cache's TTL.
func (c *ResultCache) Set(fingerprint string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(fingerprint, cacheEntry{results: results, expiresAt: time.Now().Add(c.ttl)})
}

// Invalidate drops a single fingerprint's cached entry.
func (c *ResultCache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(fingerprint)
}

// InvalidateAll clears every cached entry. Called on mutations whose
// affected candidate set cannot be cheaply intersected against cached
// fingerprints (§4.I step 5, §5 "invalidated on any mutation to
// storage and on change-log updates intersecting the candidate set").
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len reports the number of entries currently cached, for statistics
// and tests.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
