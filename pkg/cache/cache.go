// cache holds rendered responses for a while, keyed by request path and query.
package cache

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/lmfdb/lmfdb/pkg/metrics"
)

// Page is a cached response.
type Page struct {
	Status      int
	ContentType string
	Body        []byte

	stored time.Time
}

// Cache is a LRU cache of Pages with TTL.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	pages *lru.Cache
	ttl   time.Duration
	clock func() time.Time
}

type Option func(*Cache) *Cache

// WithClock replaces the time source of the Cache.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) *Cache {
		c.clock = clock
		return c
	}
}

// New creates a Cache.
//
// # Args
//
// - size: max number of pages. Least recently used ones are evicted over this.
//
// - ttl: pages older than this are not served.
func New(size int, ttl time.Duration, options ...Option) *Cache {
	if size < 1 {
		size = 1
	}
	c := &Cache{pages: lru.New(size), ttl: ttl, clock: time.Now}
	for _, opt := range options {
		c = opt(c)
	}
	return c
}

// Get returns the page for key, if it is cached and not expired.
func (c *Cache) Get(key string) (Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.pages.Get(key)
	if !ok {
		metrics.PageCacheRequests.WithLabelValues("miss").Inc()
		return Page{}, false
	}
	p := v.(Page)
	if c.ttl < c.clock().Sub(p.stored) {
		c.pages.Remove(key)
		metrics.PageCacheRequests.WithLabelValues("miss").Inc()
		return Page{}, false
	}
	metrics.PageCacheRequests.WithLabelValues("hit").Inc()
	return p, true
}

// Set caches the page for key.
func (c *Cache) Set(key string, p Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p.stored = c.clock()
	c.pages.Add(key, p)
}

// Purge drops all pages.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages.Clear()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.Len()
}

// Key is the cache key of the request: path and query sorted by key.
func Key(req *http.Request) string {
	u := req.URL
	q := u.Query()
	if len(q) == 0 {
		return u.Path
	}
	return u.Path + "?" + q.Encode()
}
