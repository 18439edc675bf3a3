// Package settings serves tenant currency settings from Postgres through a Redis cache.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/currency"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/tenant"
)

// Locker serialises refreshes of a tenant's settings across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Options configures a Service.
type Options struct {
	// BaseCurrency is used for tenants without stored settings.
	BaseCurrency string
	LockTTL      time.Duration
	Logger       *zerolog.Logger
}

// Service resolves tenant settings, preferring the cache over the repository.
type Service struct {
	repo    Repository
	cache   *Cache
	locker  Locker
	base    string
	lockTTL time.Duration
	logger  zerolog.Logger
}

// NewService wires a settings service. cache and locker may be nil.
func NewService(repo Repository, cache *Cache, locker Locker, opts Options) *Service {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	base := opts.BaseCurrency
	if base == "" {
		base = currency.DefaultBase
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		locker:  locker,
		base:    base,
		lockTTL: opts.LockTTL,
		logger:  logger,
	}
}

// Get returns the currency settings of tenantID. Tenants without stored settings get base-only
// settings in the configured base currency. Cache failures are logged and bypassed; repository
// failures are returned.
func (s *Service) Get(ctx context.Context, tenantID string) (currency.Settings, error) {
	cached, ok, err := s.cache.Get(ctx, tenantID)
	switch {
	case err != nil:
		obs.ObserveSettingsCache("error")
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("settings cache read failed")
	case ok:
		obs.ObserveSettingsCache("hit")
		return cached, nil
	default:
		obs.ObserveSettingsCache("miss")
	}

	loaded, err := s.load(ctx, tenantID)
	if err != nil {
		return currency.Settings{}, err
	}
	if err := s.cache.Set(ctx, tenantID, loaded); err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("settings cache write failed")
	}
	return loaded, nil
}

// Refresh reloads the settings of tenantID into the cache. When another process is already
// refreshing the tenant the call is a no-op.
func (s *Service) Refresh(ctx context.Context, tenantID string) error {
	run := func(ctx context.Context) error {
		loaded, err := s.load(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := s.cache.Set(ctx, tenantID, loaded); err != nil {
			return fmt.Errorf("cache settings: %w", err)
		}
		return nil
	}

	var err error
	if s.locker == nil {
		err = run(ctx)
	} else {
		err = s.locker.TryLock(ctx, refreshLockKey(tenantID), s.lockTTL, run)
	}
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		obs.ObserveSettingsRefresh("skipped")
		s.logger.Debug().Str("tenant_id", tenantID).Msg("settings refresh already running")
		return nil
	case err != nil:
		obs.ObserveSettingsRefresh("error")
		return fmt.Errorf("refresh settings for %s: %w", tenantID, err)
	}
	obs.ObserveSettingsRefresh("ok")
	s.logger.Info().Str("tenant_id", tenantID).Msg("settings refreshed")
	return nil
}

// RefreshAll refreshes every tenant known to the repository and returns how many succeeded.
// Failures for individual tenants do not stop the run; they are joined into the returned error.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	tenants, err := s.repo.ListTenants(ctx)
	if err != nil {
		obs.ObserveSettingsRefresh("error")
		return 0, err
	}
	var (
		refreshed int
		errs      []error
	)
	for _, id := range tenants {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.Refresh(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}

func refreshLockKey(tenantID string) string {
	return tenant.PrefixKey(tenantID, "currency:refresh")
}

func (s *Service) load(ctx context.Context, tenantID string) (currency.Settings, error) {
	loaded, err := s.repo.Load(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return currency.Settings{BaseCurrency: s.base}, nil
	}
	if err != nil {
		return currency.Settings{}, err
	}
	if loaded.BaseCurrency == "" {
		loaded.BaseCurrency = s.base
	}
	return loaded, nil
}
