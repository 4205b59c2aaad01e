package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"
)

// cacheKey returns SHA-256 hex of the normalized query for cache lookup.
func cacheKey(query, country string) string {
	normalized := fmt.Sprintf("%s|%s", strings.ToLower(strings.TrimSpace(query)), country)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

// ttlCache is a process-scoped result cache. Misses are cached too, so a
// bad query does not hit the providers again until it expires.
type ttlCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *ttlCache) get(key string) (*Result, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	r := e.result
	return &r, true
}

func (c *ttlCache) set(key string, r *Result) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	// Opportunistic sweep keeps the map bounded by the live working set.
	if len(c.entries) >= 1024 {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = cacheEntry{result: *r, expires: now.Add(c.ttl)}
}
