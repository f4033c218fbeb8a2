package knowledge

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/replypipe/replypipe/core"
)

// CacheOptions configure the caching wrapper.
type CacheOptions struct {
	Size int
	TTL  time.Duration
}

// Cached wraps a Resolver with a TTL'd LRU. Only successful lookups are
// cached; NotFound and transient errors always go back to the source so a
// record created after a miss becomes visible immediately.
type Cached struct {
	source Resolver
	cache  *expirable.LRU[string, core.KnowledgeRecord]
}

// NewCached wraps source with defaults of 1024 entries and a 5 minute TTL.
func NewCached(source Resolver, optFns ...func(o *CacheOptions)) *Cached {
	opts := CacheOptions{
		Size: 1024,
		TTL:  5 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Cached{
		source: source,
		cache:  expirable.NewLRU[string, core.KnowledgeRecord](opts.Size, nil, opts.TTL),
	}
}

// Lookup implements Resolver.
func (c *Cached) Lookup(ctx context.Context, intent core.Intent) (core.KnowledgeRecord, error) {
	key := cacheKey(intent)
	if rec, ok := c.cache.Get(key); ok {
		return rec, nil
	}

	rec, err := c.source.Lookup(ctx, intent)
	if err != nil {
		return core.KnowledgeRecord{}, err
	}

	c.cache.Add(key, rec)
	return rec, nil
}

// Purge empties the cache.
func (c *Cached) Purge() {
	c.cache.Purge()
}
