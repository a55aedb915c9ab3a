package marketdata

import (
	"sync"
	"time"
)

// newsCacheEntry holds one cached news response.
type newsCacheEntry struct {
	items     []NewsItem
	fetchedAt time.Time

	// fill serializes provider fetches for this key so that concurrent
	// callers on a cold or expired entry produce a single round trip.
	fill sync.Mutex
}

// newsCache is a read-through cache for news responses keyed by
// (category, minId). Entries expire by TTL and are never persisted.
type newsCache struct {
	mu      sync.RWMutex
	entries map[string]*newsCacheEntry
	ttl     time.Duration
}

func newNewsCache(ttl time.Duration) *newsCache {
	return &newsCache{
		entries: make(map[string]*newsCacheEntry),
		ttl:     ttl,
	}
}

// get returns the cached items for key if present and fresh.
func (c *newsCache) get(key string) ([]NewsItem, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	entry.fill.Lock()
	defer entry.fill.Unlock()
	if entry.items == nil || time.Since(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.items, true
}

// fetchThrough returns fresh cached items for key, calling fetch on miss or
// expiry. The per-key fill lock guarantees at most one provider round trip
// per key per TTL window even under concurrent callers; losers of the race
// observe the winner's result.
func (c *newsCache) fetchThrough(key string, fetch func() ([]NewsItem, error)) ([]NewsItem, error) {
	if items, ok := c.get(key); ok {
		return items, nil
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &newsCacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.fill.Lock()
	defer entry.fill.Unlock()

	if entry.items != nil && time.Since(entry.fetchedAt) < c.ttl {
		return entry.items, nil
	}

	items, err := fetch()
	if err != nil {
		return nil, err
	}

	entry.items = items
	entry.fetchedAt = time.Now()
	return items, nil
}

// purgeExpired drops entries past their TTL. fetchedAt is written under the
// per-entry fill lock, so it is read under the same lock here; an entry
// whose fill is in flight is fresh by definition and survives the sweep.
func (c *newsCache) purgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		entry.fill.Lock()
		expired := entry.items == nil || time.Since(entry.fetchedAt) >= c.ttl
		entry.fill.Unlock()
		if expired {
			delete(c.entries, key)
		}
	}
}
