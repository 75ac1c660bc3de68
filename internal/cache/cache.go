package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a best-effort byte cache over redis. A nil client or a redis
// error is treated as a miss; callers never fail because of the cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, key string, val []byte) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, key, val, c.ttl).Err()
}

func (c *Cache) Del(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, key).Err()
}
