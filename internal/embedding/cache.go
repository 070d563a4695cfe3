package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mnemo/pkg/logger"
)

const cacheKeyPrefix = "kw_embedding:"

// redisCmds is the subset of the Redis API the cache uses
type redisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cache wraps an Embedder with a Redis-backed cache so that repeated texts do
// not hit the embedding service again, within and across requests. Cache
// failures are logged and ignored: a broken cache never blocks an embedding.
type Cache struct {
	inner  Embedder
	redis  redisCmds
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates an embedding cache over the given Redis client
func NewCache(inner Embedder, rdb *redis.Client, ttl time.Duration) *Cache {
	return newCache(inner, rdb, ttl)
}

func newCache(inner Embedder, rdb redisCmds, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		inner:  inner,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.Get(),
	}
}

// Embed returns a cached embedding when available, otherwise calls the inner
// embedder and stores the result.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var emb []float32
		if jsonErr := json.Unmarshal([]byte(cached), &emb); jsonErr == nil && len(emb) > 0 {
			c.logger.Debug("Embedding cache hit", zap.String("key", key))
			return emb, nil
		}
		c.logger.Warn("Discarding malformed cached embedding", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Embedding cache get failed", zap.String("key", key), zap.Error(err))
	}

	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(emb)
	if err == nil {
		if setErr := c.redis.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("Embedding cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	}

	return emb, nil
}

func cacheKey(text string) string {
	return cacheKeyPrefix + text
}
