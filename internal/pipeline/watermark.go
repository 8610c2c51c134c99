package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/ironsheep/image-optim/internal/imaging"
)

// LoadFunc loads the image behind a watermark locator.
type LoadFunc func(ctx context.Context, locator string) (*imaging.ImageState, error)

// WatermarkCache serves watermark sources from a bounded LRU. Concurrent
// misses for the same locator share one load. Returned states are shared
// and must not be modified.
type WatermarkCache struct {
	cache  *imaging.SourceCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewWatermarkCache creates a cache of the given capacity. A capacity of
// zero disables caching but still collapses concurrent loads.
func NewWatermarkCache(capacity int, logger *slog.Logger) *WatermarkCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatermarkCache{
		cache:  imaging.NewSourceCache(capacity),
		logger: logger,
	}
}

// Get returns the cached state for locator, calling load on a miss and
// inserting its result. Insert failures are logged and ignored.
//
// The load of a collapsed miss runs with the context of the first caller.
func (c *WatermarkCache) Get(ctx context.Context, locator string, load LoadFunc) (*imaging.ImageState, error) {
	key := imaging.NormalizeKey(locator)
	if st, ok := c.cache.Get(locator); ok {
		c.logger.Debug("watermark cache hit", slog.String("key", shortKey(key)))
		return st, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A concurrent flight may have filled the entry since our lookup.
		if st, ok := c.cache.Get(locator); ok {
			return st, nil
		}
		st, err := load(ctx, locator)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Add(locator, st); err != nil {
			c.logger.Debug("watermark cache insert skipped",
				slog.String("key", shortKey(key)),
				slog.String("error", err.Error()),
			)
		}
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("watermark cache miss",
		slog.String("key", shortKey(key)),
		slog.Bool("shared", shared),
	)
	return v.(*imaging.ImageState), nil
}

// Len returns the number of cached sources.
func (c *WatermarkCache) Len() int { return c.cache.Len() }

// Contains reports whether locator is cached.
func (c *WatermarkCache) Contains(locator string) bool { return c.cache.Contains(locator) }

// Purge empties the cache.
func (c *WatermarkCache) Purge() { c.cache.Clear() }

// shortKey keeps inline base64 locators out of the logs.
func shortKey(key string) string {
	const limit = 64
	if len(key) <= limit {
		return key
	}
	return key[:limit] + "..."
}
