// File: internal/router/cache.go
package router

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCacheTTL is the maximum age of a cached page body before it is
// treated as absent.
const DefaultCacheTTL = 60 * time.Second

// DefaultCacheMaxEntries bounds the cache for long sessions; the TTL alone
// never shrinks the map.
const DefaultCacheMaxEntries = 64

// CacheEntry is an immutable snapshot of a fetched page. Entries are replaced
// on re-fetch, never mutated.
type CacheEntry struct {
	URL       string
	Body      string
	FetchedAt time.Time
}

// Cache maps normalized URL to page body with TTL staleness and LRU eviction.
// Stale and missing entries are indistinguishable to callers. Safe for
// concurrent use: prefetch goroutines write while the navigator reads.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	ll         *list.List // front = most recently used
	items      map[string]*list.Element
	now        func() time.Time
}

// NewCache creates a cache with the given TTL and entry bound.
// A zero ttl falls back to DefaultCacheTTL; maxEntries <= 0 disables the bound.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get returns the entry for url if present and fresh. A stale entry is
// removed and reported as a miss.
func (c *Cache) Get(url string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[url]
	if !ok {
		return CacheEntry{}, false
	}
	entry := elem.Value.(CacheEntry)
	if c.now().Sub(entry.FetchedAt) > c.ttl {
		c.ll.Remove(elem)
		delete(c.items, url)
		return CacheEntry{}, false
	}
	c.ll.MoveToFront(elem)
	return entry, true
}

// Put stores or replaces the entry for url with FetchedAt set to now.
func (c *Cache) Put(url, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := CacheEntry{URL: url, Body: body, FetchedAt: c.now()}
	if elem, ok := c.items[url]; ok {
		elem.Value = entry
		c.ll.MoveToFront(elem)
		return
	}
	c.items[url] = c.ll.PushFront(entry)

	if c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(CacheEntry).URL)
		}
	}
}

// Clear removes all entries. Exposed for manual invalidation after a
// mutating action.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
