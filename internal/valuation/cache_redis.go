package valuation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis-backed PriceCache. It lets multiple indexer
// processes share resolved unit prices; read/write errors degrade to
// cache misses rather than failing valuation.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache on an existing client. A non-positive
// ttl falls back to DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Compile-time interface check.
var _ PriceCache = (*RedisCache)(nil)

// Get returns the cached price. Any error, including redis.Nil, is a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (float64, bool) {
	price, err := c.client.Get(ctx, key).Float64()
	if err != nil {
		return 0, false
	}
	return price, true
}

// Set stores a price with the cache TTL. Write failures are ignored; the
// next lookup falls through to the pricing sources.
func (c *RedisCache) Set(ctx context.Context, key string, price float64) {
	c.client.Set(ctx, key, price, c.ttl)
}
