package settings

import (
	"context"
	"errors"

	"github.com/noah-isme/toko-pricing/internal/currency"
	"github.com/noah-isme/toko-pricing/internal/resilience"
)

// GuardedRepository fails fast while the wrapped repository keeps erroring, so pricing
// requests degrade to the base currency instead of queueing on a dead database.
type GuardedRepository struct {
	repo    Repository
	breaker *resilience.Breaker
}

// Guard wraps repo with breaker. A missing tenant row does not count as a failure.
func Guard(repo Repository, breaker *resilience.Breaker) *GuardedRepository {
	breaker.WithIgnore(func(err error) bool { return errors.Is(err, ErrNotFound) })
	return &GuardedRepository{repo: repo, breaker: breaker}
}

// Load implements Repository.
func (g *GuardedRepository) Load(ctx context.Context, tenantID string) (currency.Settings, error) {
	var out currency.Settings
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.repo.Load(ctx, tenantID)
		return err
	})
	return out, err
}

// ListTenants implements Repository.
func (g *GuardedRepository) ListTenants(ctx context.Context) ([]string, error) {
	var out []string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.repo.ListTenants(ctx)
		return err
	})
	return out, err
}
