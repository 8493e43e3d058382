package llm

import (
	"sync"
	"time"

	"github.com/D0rk4ce/mealie-kitchen-ops/internal/model"
)

// cacheEntry represents a cached escalation answer.
type cacheEntry struct {
	expiry time.Time
	result model.ClassificationResult
}

// resultCache keeps answers by recipe content hash so a re-run over an
// unchanged recipe does not pay for the same question twice.
// Expired entries are dropped on access.
type resultCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	mu      sync.Mutex
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *resultCache) get(key string) (model.ClassificationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return model.ClassificationResult{}, false
	}
	if time.Now().After(entry.expiry) {
		delete(c.entries, key)
		return model.ClassificationResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(key string, result model.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expiry: time.Now().Add(c.ttl)}
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
