package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-pricing/internal/currency"
)

// ErrNotFound is returned when a tenant has no stored currency settings.
var ErrNotFound = errors.New("settings: not found")

// Repository loads tenant currency settings from durable storage.
type Repository interface {
	Load(ctx context.Context, tenantID string) (currency.Settings, error)
	ListTenants(ctx context.Context) ([]string, error)
}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository reads settings from the currency_settings and supported_currencies tables.
type PGRepository struct {
	db Querier
}

// NewPGRepository constructs a Postgres-backed repository.
func NewPGRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

const (
	selectBaseCurrency = `SELECT base_currency FROM currency_settings WHERE tenant_id = $1`

	// exchange_rate is read as text so numeric precision survives into decimal.Decimal.
	selectSupported = `SELECT code, symbol, exchange_rate::text, is_active
FROM supported_currencies
WHERE tenant_id = $1
ORDER BY position, code`

	selectTenants = `SELECT tenant_id FROM currency_settings ORDER BY tenant_id`
)

// Load returns the settings stored for tenantID or ErrNotFound.
func (r *PGRepository) Load(ctx context.Context, tenantID string) (currency.Settings, error) {
	var out currency.Settings
	if err := r.db.QueryRow(ctx, selectBaseCurrency, tenantID).Scan(&out.BaseCurrency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return currency.Settings{}, ErrNotFound
		}
		return currency.Settings{}, fmt.Errorf("load base currency: %w", err)
	}

	rows, err := r.db.Query(ctx, selectSupported, tenantID)
	if err != nil {
		return currency.Settings{}, fmt.Errorf("load supported currencies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c    currency.Currency
			rate string
		)
		if err := rows.Scan(&c.Code, &c.Symbol, &rate, &c.IsActive); err != nil {
			return currency.Settings{}, fmt.Errorf("scan supported currency: %w", err)
		}
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		c.ExchangeRate = currency.ParseRate(rate)
		out.SupportedCurrencies = append(out.SupportedCurrencies, c)
	}
	if err := rows.Err(); err != nil {
		return currency.Settings{}, fmt.Errorf("iterate supported currencies: %w", err)
	}
	return out, nil
}

// ListTenants returns every tenant that has stored settings.
func (r *PGRepository) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, selectTenants)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	tenants, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}
