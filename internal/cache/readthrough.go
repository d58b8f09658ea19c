package cache

import (
	"context"
	"time"
)

// Reader is the part of RedisCache a read-through fill needs.
type Reader interface {
	Get(ctx context.Context, key string, dst any) bool
	Generation(ctx context.Context) (int64, error)
	SetIfUnchanged(ctx context.Context, key string, value any, ttl time.Duration, generation int64) bool
}

// ReadThrough serves key from c, or loads it and fills the cache. The fill is
// dropped when an invalidation ran while load was in flight. A nil c always loads.
func ReadThrough[T any](ctx context.Context, c Reader, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	gen, genErr := c.Generation(ctx)
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if genErr == nil {
		c.SetIfUnchanged(ctx, key, value, ttl, gen)
	}
	return value, nil
}
