package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NERVsystems/osmtiles/pkg/cache"
	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/monitoring"
	"github.com/NERVsystems/osmtiles/pkg/osm"
	"github.com/NERVsystems/osmtiles/pkg/tracing"
)

const (
	cacheType         = "osm_data"
	defaultCacheItems = 64
)

// Cached wraps a provider and reuses fetched data for identical requests
// until it expires. Returned data is shared and must not be modified.
type Cached struct {
	Provider
	store *cache.TTLCache[string, *osm.Data]
}

// NewCached caches p's fetches for ttl. Call Close to stop the cleanup goroutine.
func NewCached(p Provider, ttl time.Duration) *Cached {
	return &Cached{
		Provider: p,
		store:    cache.New[string, *osm.Data](ttl, max(ttl/2, time.Second), defaultCacheItems),
	}
}

// CacheKey identifies a request by provider, region, features and timeout.
func CacheKey(providerType string, cfg config.Config) string {
	var b strings.Builder
	b.WriteString(providerType)
	b.WriteByte('|')
	if cfg.Region != nil {
		b.WriteString(cfg.Region.Key())
	}
	b.WriteByte('|')
	for i, t := range cfg.Features.Queries() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Filter())
	}
	fmt.Fprintf(&b, "|%d", cfg.TimeoutSeconds)
	return b.String()
}

// Fetch returns cached data when present, otherwise fetches and stores it.
// Failures are not cached.
func (c *Cached) Fetch(ctx context.Context, cfg config.Config) (*osm.Data, error) {
	key := CacheKey(c.Type(), cfg)
	if data, ok := c.store.Get(key); ok {
		monitoring.RecordCacheHit(cacheType)
		tracing.SetAttributes(ctx, tracing.CacheAttributes(cacheType, true)...)
		return data, nil
	}
	monitoring.RecordCacheMiss(cacheType)
	tracing.SetAttributes(ctx, tracing.CacheAttributes(cacheType, false)...)

	data, err := c.Provider.Fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, data)
	monitoring.UpdateCacheSize(cacheType, c.store.Count())
	return data, nil
}

// Len reports how many fetches are cached
func (c *Cached) Len() int { return c.store.Count() }

// Close stops the cache's cleanup goroutine
func (c *Cached) Close() { c.store.Stop() }
