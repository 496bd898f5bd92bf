package geocode

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/observability"
)

// Cache fronts a Store with alias-aware lookups and self-healing. Store
// failures are logged and reported as misses; they never reach callers.
type Cache struct {
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics

	// mu is held for reading by every store operation and for writing by
	// Reset, so no operation observes a half-recreated store.
	mu         sync.RWMutex
	generation uint64
}

// NewCache wraps store.
func NewCache(store Store, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{store: store, logger: logger, metrics: metrics}
}

// Lookup checks the alias key first, then the literal query key. It returns
// the key that hit.
func (c *Cache) Lookup(ctx context.Context, q domain.GeocodeQuery) (domain.GeocodeCacheEntry, string, bool) {
	keys := []string{q.CacheKey()}
	if q.AliasKey != "" {
		keys = []string{q.AliasKey, q.CacheKey()}
	}
	for _, k := range keys {
		if e, ok := c.Get(ctx, k); ok {
			c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
			return e, k, true
		}
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()
	return domain.GeocodeCacheEntry{}, "", false
}

// Get reads a single key.
func (c *Cache) Get(ctx context.Context, key string) (domain.GeocodeCacheEntry, bool) {
	var entry domain.GeocodeCacheEntry
	var found bool
	err := c.withHealing(ctx, "get", func() error {
		var err error
		entry, found, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("geocode cache read failed", "key", key, "error", err)
		return domain.GeocodeCacheEntry{}, false
	}
	return entry, found
}

// Save stores entry under the query key and, when present, the alias key.
func (c *Cache) Save(ctx context.Context, q domain.GeocodeQuery, entry domain.GeocodeCacheEntry) {
	keys := []string{q.CacheKey()}
	if q.AliasKey != "" && q.AliasKey != q.CacheKey() {
		keys = append(keys, q.AliasKey)
	}
	for _, k := range keys {
		c.Put(ctx, k, entry)
	}
}

// Put writes entry under key.
func (c *Cache) Put(ctx context.Context, key string, entry domain.GeocodeCacheEntry) {
	entry.Key = key
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = domain.Now()
	}
	err := c.withHealing(ctx, "put", func() error {
		return c.store.Put(ctx, entry)
	})
	if err != nil {
		c.logger.Warn("geocode cache write failed", "key", key, "error", err)
	}
}

// withHealing runs op and, when it fails with ErrStoreCorrupt, recreates the
// store and runs op exactly once more.
func (c *Cache) withHealing(ctx context.Context, opName string, op func() error) error {
	c.mu.RLock()
	gen := c.generation
	err := op()
	c.mu.RUnlock()

	if err == nil || !errors.Is(err, ErrStoreCorrupt) {
		return err
	}

	c.logger.Warn("geocode cache store unusable, recreating", "op", opName, "error", err)
	if resetErr := c.reset(ctx, gen); resetErr != nil {
		return errors.Join(err, resetErr)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return op()
}

// reset recreates the store unless another caller already did so since gen.
func (c *Cache) reset(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	if err := c.store.Reset(ctx); err != nil {
		return err
	}
	c.generation++
	c.metrics.GeocodeCacheResets.Inc()
	return nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
