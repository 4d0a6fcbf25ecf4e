package agro

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/observability"
)

// StatsFetcher retrieves the index statistics behind an image stats URL.
type StatsFetcher interface {
	IndexStats(ctx context.Context, statsURL string) (domain.RawIndexStats, error)
}

// CachedStats wraps a StatsFetcher with an in-memory LRU cache. A stats
// document never changes once the image exists, so entries do not expire.
type CachedStats struct {
	inner   StatsFetcher
	cache   *lru.Cache[string, domain.RawIndexStats]
	metrics *observability.Metrics
}

// NewCachedStats creates a cache decorator around a stats fetcher.
// A non-positive maxEntries keeps a single entry.
func NewCachedStats(inner StatsFetcher, maxEntries int, metrics *observability.Metrics) *CachedStats {
	// New only fails for a non-positive size.
	cache, _ := lru.New[string, domain.RawIndexStats](max(maxEntries, 1))
	return &CachedStats{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

func (c *CachedStats) IndexStats(ctx context.Context, statsURL string) (domain.RawIndexStats, error) {
	if stats, ok := c.cache.Get(statsURL); ok {
		c.metrics.StatsCache.WithLabelValues("hit").Inc()
		return stats, nil
	}
	c.metrics.StatsCache.WithLabelValues("miss").Inc()

	stats, err := c.inner.IndexStats(ctx, statsURL)
	if err != nil {
		return stats, err
	}
	c.cache.Add(statsURL, stats)
	return stats, nil
}

// Len returns the number of cached documents.
func (c *CachedStats) Len() int {
	return c.cache.Len()
}
