package reconciler

import (
	"sync"
	"time"

	"github.com/harun/tabgate/internal/observability"
	"github.com/harun/tabgate/pkg/tooladapter"
)

// listCache holds the last tabs-list result per (agent, user, tool). It is a
// best-effort accelerator, never authoritative: mutating calls invalidate it
// eagerly, and any decision that needs a guaranteed-fresh view bypasses it.
type listCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]listCacheEntry
}

type listCacheEntry struct {
	list      tooladapter.TabList
	fetchedAt time.Time
}

func newListCache(ttl time.Duration) *listCache {
	return &listCache{
		ttl:     ttl,
		entries: make(map[string]listCacheEntry),
	}
}

func (c *listCache) get(key string) (tooladapter.TabList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		observability.RecordCacheMiss()
		return nil, false
	}
	if time.Since(e.fetchedAt) > c.ttl {
		delete(c.entries, key)
		observability.RecordCacheMiss()
		return nil, false
	}
	observability.RecordCacheHit()
	return e.list, true
}

func (c *listCache) put(key string, list tooladapter.TabList) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = listCacheEntry{list: list, fetchedAt: time.Now()}
}

func (c *listCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// sweep drops expired entries; wired to the daemon janitor.
func (c *listCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if time.Since(e.fetchedAt) > c.ttl {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

func (c *listCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]listCacheEntry)
}
