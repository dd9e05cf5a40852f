// Package cache provides a Redis-backed embedding vector cache. Misses
// and Redis outages degrade to direct provider calls; nothing here is
// load-bearing for correctness.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	val, err := c.client.Get(ctx, "emb:"+key).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("embedding cache get failed", "error", err)
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal([]byte(val), &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) Put(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, "emb:"+key, data, c.ttl).Err(); err != nil {
		slog.Debug("embedding cache put failed", "error", err)
	}
}
