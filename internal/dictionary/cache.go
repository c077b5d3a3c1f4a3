package dictionary

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultCacheCapacity bounds a cache when no capacity is given.
const DefaultCacheCapacity = 32

// Cache is a bounded registry cache with least-recently-used eviction.
//
// Entries are keyed by the canonicalized source list (cleaned,
// deduplicated, sorted) and the namespacing flag, so call-site ordering
// of equivalent source sets still hits. The cache is owned by the
// pipeline's composition root; builds for the same key serialize on the
// cache lock, and the cache is safe for use from multiple goroutines.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*Registry
	order    []string
}

// NewCache creates a registry cache holding at most capacity entries.
// A non-positive capacity falls back to DefaultCacheCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*Registry),
	}
}

// Build returns the cached registry for (sources, namespaced) or builds
// and caches it. Repeated calls with an equivalent source set return
// the same Registry instance without re-parsing.
func (c *Cache) Build(sources []string, namespaced bool) (*Registry, error) {
	key := cacheKey(sources, namespaced)

	c.mu.Lock()
	defer c.mu.Unlock()

	if reg, ok := c.entries[key]; ok {
		c.touch(key)
		return reg, nil
	}

	reg, err := Build(sources, namespaced)
	if err != nil {
		return nil, err
	}

	c.entries[key] = reg
	c.order = append(c.order, key)
	if len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	return reg, nil
}

// Len returns the number of cached registries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// touch moves key to the most-recently-used position.
func (c *Cache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), key)
			return
		}
	}
}

// cacheKey canonicalizes the source list: cleaned paths, deduplicated,
// sorted, joined with an unprintable separator, plus the flag.
func cacheKey(sources []string, namespaced bool) string {
	seen := make(map[string]struct{}, len(sources))
	cleaned := make([]string, 0, len(sources))
	for _, src := range sources {
		p := filepath.Clean(src)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		cleaned = append(cleaned, p)
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, "\x00") + "|" + strconv.FormatBool(namespaced)
}
