package version

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	family Family
	stream string
}

func (k cacheKey) String() string {
	return string(k.family) + "/" + k.stream
}

type cacheEntry struct {
	catalog *Catalog
	err     error
}

// FetchHook is called once per actual feed query.
type FetchHook func(family Family, stream string, err error)

// Cache memoizes catalogs for one orchestration run, keyed by (family, stream).
// Concurrent requests for the same key share a single feed query. Failed
// acquisitions are memoized too, so every cluster depending on a broken feed
// fails the same way without hammering it.
type Cache struct {
	feeds map[Family]Feed
	hook  FetchHook

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithFetchHook registers a hook observing feed queries.
func WithFetchHook(hook FetchHook) CacheOption {
	return func(c *Cache) {
		c.hook = hook
	}
}

// NewCache creates a cache over the given per-family feeds.
func NewCache(feeds map[Family]Feed, opts ...CacheOption) *Cache {
	c := &Cache{
		feeds:   make(map[Family]Feed, len(feeds)),
		entries: make(map[cacheKey]cacheEntry),
	}
	for f, feed := range feeds {
		c.feeds[f] = feed
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the catalog for (family, stream), querying the feed at most once per run.
func (c *Cache) Catalog(ctx context.Context, family Family, stream string) (*Catalog, error) {
	key := cacheKey{family: family, stream: stream}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry.catalog, entry.err
	}

	v, _, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched := c.fetch(ctx, key)

		c.mu.Lock()
		c.entries[key] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	entry = v.(cacheEntry)
	return entry.catalog, entry.err
}

func (c *Cache) fetch(ctx context.Context, key cacheKey) cacheEntry {
	feed, ok := c.feeds[key.family]
	if !ok {
		return cacheEntry{err: fmt.Errorf("%w: no feed configured for %s", ErrCatalogUnavailable, key.family)}
	}

	catalog, err := feed.Fetch(ctx, key.stream)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %s: %w", ErrCatalogUnavailable, key, err)
	case catalog.Len() == 0:
		err = fmt.Errorf("%w: %s: feed returned no builds", ErrCatalogUnavailable, key)
	}
	if c.hook != nil {
		c.hook(key.family, key.stream, err)
	}
	if err != nil {
		return cacheEntry{err: err}
	}
	return cacheEntry{catalog: catalog}
}
