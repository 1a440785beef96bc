package specsource

import (
	"sync"
	"time"
)

// DefaultCacheTTL is used when a negative TTL is configured
const DefaultCacheTTL = 300000 * time.Millisecond

type cacheEntry struct {
	content string
	expiry  time.Time
}

// Cache is a thread-safe TTL cache of spec content keyed by product and
// spec path. Entries are replaced whole; a race between two fetches of the
// same key keeps the last write.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache. A zero TTL disables caching; a negative TTL
// selects DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the effective time to live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func cacheKey(product, specPath string) string {
	return product + "::" + specPath
}

// Get returns a non-expired entry. Expired entries are dropped.
func (c *Cache) Get(product, specPath string) (string, bool) {
	if c.ttl == 0 {
		return "", false
	}
	key := cacheKey(product, specPath)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.expiry) {
		delete(c.entries, key)
		return "", false
	}
	return entry.content, true
}

// Put stores content until now + TTL. It is a no-op when caching is disabled.
func (c *Cache) Put(product, specPath, content string) {
	if c.ttl == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(product, specPath)] = cacheEntry{content: content, expiry: c.now().Add(c.ttl)}
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
