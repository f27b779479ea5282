package valuation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultCacheTTL is how long a resolved unit price stays usable.
const DefaultCacheTTL = 10 * time.Minute

// PriceCache stores resolved unit prices keyed by (token pair, quote side).
// Staleness, not correctness, is the only risk of a shared cache, so
// implementations do not need cross-event coordination beyond their own
// internal safety.
type PriceCache interface {
	Get(ctx context.Context, key string) (float64, bool)
	Set(ctx context.Context, key string, price float64)
}

// CacheKey builds the cache key for a priced token against its quote side.
func CacheKey(token, quote common.Address, side string) string {
	return fmt.Sprintf("price:%s:%s:%s", token.Hex(), quote.Hex(), side)
}

// cacheEntry is a cached price with its expiry.
type cacheEntry struct {
	price     float64
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Compile-time interface check.
var _ PriceCache = (*MemoryCache)(nil)

// Get returns the cached price if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (float64, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.price, true
}

// Set stores a price with the cache TTL.
func (c *MemoryCache) Set(_ context.Context, key string, price float64) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{price: price, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
