package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/currency"
	"github.com/noah-isme/toko-pricing/internal/tenant"
)

const cacheKey = "currency:settings"

// Cache stores tenant settings in Redis as JSON.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCache constructs a cache. A nil client disables caching.
func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key returns the Redis key holding the settings of tenantID.
func Key(tenantID string) string {
	return tenant.PrefixKey(tenantID, cacheKey)
}

// Get returns the cached settings and whether they were present.
func (c *Cache) Get(ctx context.Context, tenantID string) (currency.Settings, bool, error) {
	var out currency.Settings
	if c == nil || c.client == nil {
		return out, false, nil
	}
	data, err := c.client.Get(ctx, Key(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, false, nil
		}
		return out, false, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return currency.Settings{}, false, err
	}
	return out, true, nil
}

// Set stores s with the configured TTL.
func (c *Cache) Set(ctx context.Context, tenantID string, s currency.Settings) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(tenantID), data, c.ttl).Err()
}

// Invalidate drops the cached settings of tenantID.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, Key(tenantID)).Err()
}
