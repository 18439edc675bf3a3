package settings

import (
	"context"
	"fmt"
	"time"
)

// WaitLocker blocks until the lock for key is free before running fn.
type WaitLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ApplyUpdate runs write while holding the tenant's refresh lock and then drops the cached
// settings. Holding the lock keeps an in-flight refresh from caching the old values after the
// invalidation. The cache is left alone when write fails.
func ApplyUpdate(ctx context.Context, locker WaitLocker, cache *Cache, tenantID string, ttl time.Duration, write func(context.Context) error) error {
	return locker.WithLock(ctx, refreshLockKey(tenantID), ttl, func(ctx context.Context) error {
		if err := write(ctx); err != nil {
			return err
		}
		if err := cache.Invalidate(ctx, tenantID); err != nil {
			return fmt.Errorf("invalidate settings cache for %s: %w", tenantID, err)
		}
		return nil
	})
}
