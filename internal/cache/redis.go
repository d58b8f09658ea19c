package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 200

// setIfGeneration stores ARGV[2] under KEYS[2] only while the generation counter
// in KEYS[1] still equals ARGV[1]. ARGV[3] is the ttl in milliseconds, 0 for none.
var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (cur or '0') ~= ARGV[1] then
	return 0
end
if ARGV[3] == '0' then
	redis.call('SET', KEYS[2], ARGV[2])
else
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// RedisCache holds JSON snapshots of listings and bookings. Reads and fills are
// best effort: backend failures degrade to a miss and are only logged.
type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, log *zap.Logger) *RedisCache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), log)
}

func NewWithClient(client *redis.Client, log *zap.Logger) *RedisCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{client: client, log: log}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get decodes the entry under key into dst and reports whether it was a hit.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("cache entry undecodable, dropping", zap.String("key", key), zap.Error(err))
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

// Set replaces the entry under key.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Generation returns the invalidation counter. Read it before loading the value a
// later SetIfUnchanged will store.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

// SetIfUnchanged stores value unless an invalidation ran after generation was read.
// It reports whether the value was stored.
func (c *RedisCache) SetIfUnchanged(ctx context.Context, key string, value any, ttl time.Duration, generation int64) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return false
	}

	stored, err := setIfGeneration.Run(ctx, c.client, []string{generationKey, key},
		strconv.FormatInt(generation, 10), payload, max(ttl.Milliseconds(), 0)).Int()
	if err != nil {
		c.log.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if stored == 0 {
		c.log.Debug("cache fill skipped after invalidation", zap.String("key", key))
	}
	return stored == 1
}

// Invalidate bumps the generation and deletes keys in one MULTI block.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, generationKey)
		p.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate %v: %w", keys, err)
	}
	return nil
}

// InvalidatePattern deletes every key starting with prefix.
func (c *RedisCache) InvalidatePattern(ctx context.Context, prefix string) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("invalidate %s*: %w", prefix, err)
	}

	iter := c.client.Scan(ctx, 0, matchPrefix(prefix), scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("invalidate %s*: %w", prefix, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s*: %w", prefix, err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("invalidate %s*: %w", prefix, err)
		}
	}
	return nil
}
