package imaging

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCacheSize is the number of decoded sources kept by default.
const DefaultCacheSize = 10

// ErrCacheDisabled is returned by Add on a cache built with no capacity.
var ErrCacheDisabled = errors.New("image cache disabled")

// SourceCache is a bounded least-recently-used cache of decoded images,
// keyed by normalised source locator.
//
// A single mutex guards every read and write, so a Get refreshes recency
// atomically with the lookup. Entries never expire by time; the oldest
// entry is evicted when capacity is reached.
//
// Stored states are private clones. Callers receive the cached clone and
// must treat it as read-only, which the pipeline does since operations
// replace rasters instead of writing into them.
//
// # Example Usage
//
//	cache := imaging.NewSourceCache(10)
//	if st, ok := cache.Get(locator); ok {
//	    // use st.Pixels
//	}
type SourceCache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, *ImageState]
}

// NewSourceCache creates a cache holding up to capacity entries. A capacity
// of zero or less yields a cache that stores nothing.
func NewSourceCache(capacity int) *SourceCache {
	c := &SourceCache{}
	if capacity > 0 {
		// NewLRU only fails for a non-positive size.
		c.lru, _ = simplelru.NewLRU[string, *ImageState](capacity, nil)
	}
	return c
}

// NormalizeKey canonicalises a locator: surrounding whitespace is dropped
// and, for http(s) URLs only, percent-encoding is decoded, so
// "https://h/a%20b.png" and "https://h/a b.png" share an entry. Inline
// base64 is kept byte for byte.
func NormalizeKey(locator string) string {
	key := strings.TrimSpace(locator)
	if !strings.HasPrefix(key, "http://") && !strings.HasPrefix(key, "https://") {
		return key
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return key
}

// Get returns the cached state for locator and marks it recently used.
func (c *SourceCache) Get(locator string) (*ImageState, bool) {
	if c.lru == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(NormalizeKey(locator))
}

// Add stores a clone of s under locator, evicting the least recently used
// entry if the cache is full.
func (c *SourceCache) Add(locator string, s *ImageState) error {
	if c.lru == nil {
		return ErrCacheDisabled
	}
	if !s.HasPixels() {
		return errors.New("image cache: refusing to store empty state")
	}
	clone := s.Clone()
	c.mu.Lock()
	c.lru.Add(NormalizeKey(locator), clone)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (c *SourceCache) Len() int {
	if c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Contains reports whether locator is cached without touching recency.
func (c *SourceCache) Contains(locator string) bool {
	if c.lru == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(NormalizeKey(locator))
}

// Evict removes a single entry. Unknown locators are ignored.
func (c *SourceCache) Evict(locator string) {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	c.lru.Remove(NormalizeKey(locator))
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *SourceCache) Clear() {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}
