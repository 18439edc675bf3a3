// Package quote prices invoices, orders and quotations for a tenant and renders them in the
// tenant's display currency.
package quote

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/currency"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// SettingsSource returns the currency settings of a tenant.
type SettingsSource interface {
	Get(ctx context.Context, tenantID string) (currency.Settings, error)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Settings     SettingsSource
	Validator    *validator.Validate
	BaseCurrency string
	Logger       *zerolog.Logger
	Now          func() time.Time
}

// Service prices documents and converts amounts for display.
type Service struct {
	settings SettingsSource
	validate *validator.Validate
	base     string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	v := cfg.Validator
	if v == nil {
		v = NewValidator()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	base := strings.ToUpper(strings.TrimSpace(cfg.BaseCurrency))
	if base == "" {
		base = currency.DefaultBase
	}
	return &Service{settings: cfg.Settings, validate: v, base: base, logger: logger, now: now}
}

// Totals holds the formatted display totals of a document.
type Totals struct {
	Subtotal   string `json:"subtotal"`
	Discount   string `json:"discount"`
	Tax        string `json:"tax"`
	Shipping   string `json:"shipping"`
	GrandTotal string `json:"grandTotal"`
}

// Result is a priced document. Base holds amounts in the base currency rounded to cents; Display
// holds the same calculation converted with Currency.Rate.
type Result struct {
	Kind         Kind                `json:"kind"`
	Number       string              `json:"number"`
	Customer     string              `json:"customer,omitempty"`
	IssuedAt     time.Time           `json:"issuedAt"`
	BaseCurrency string              `json:"baseCurrency"`
	Currency     currency.Display    `json:"currency"`
	Base         pricing.Calculation `json:"base"`
	Display      pricing.Calculation `json:"display"`
	Formatted    Totals              `json:"formatted"`
	// Degraded is set when the requested currency could not be honoured.
	Degraded bool `json:"degraded,omitempty"`
}

// Price validates req, computes its totals and converts them to the requested display currency.
// Settings failures never fail the request; the result falls back to the base currency.
func (s *Service) Price(ctx context.Context, tenantID string, req Request) (Result, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		obs.ObservePricing("unknown", "invalid")
		return Result{}, validationError(err)
	}
	kind := req.kind()

	charges, err := req.charges()
	if err != nil {
		obs.ObservePricing(string(kind), "invalid")
		return Result{}, err
	}
	calc, err := pricing.Calculate(req.lineItems(), charges.discounts, charges.taxes, pricing.Shipping{Cost: req.Shipping.Cost})
	if err != nil {
		obs.ObservePricing(string(kind), "invalid")
		return Result{}, charges.locate(err)
	}

	settings, degraded := s.displaySettings(ctx, tenantID)
	display := currency.Prepare(settings, req.Currency)
	if code := strings.ToUpper(strings.TrimSpace(req.Currency)); code != "" && code != display.Code {
		degraded = true
		obs.ObserveCurrencyFallback("unknown_currency")
	}

	converted := convertCalculation(calc, display.Rate)
	number := strings.TrimSpace(req.Number)
	if number == "" {
		number = newNumber(kind)
	}
	obs.ObservePricing(string(kind), "ok")
	return Result{
		Kind:         kind,
		Number:       number,
		Customer:     strings.TrimSpace(req.Customer),
		IssuedAt:     s.now().UTC(),
		BaseCurrency: settings.Base(),
		Currency:     display,
		Base:         calc.Rounded(2),
		Display:      converted,
		Formatted:    formatTotals(converted, display.Symbol),
		Degraded:     degraded,
	}, nil
}

// CurrencyList is the response of Currencies.
type CurrencyList struct {
	BaseCurrency string             `json:"baseCurrency"`
	Currencies   []currency.Display `json:"currencies"`
}

// Currencies lists the tenant's active currencies, base first. Unlike the display paths a
// settings failure is reported to the caller.
func (s *Service) Currencies(ctx context.Context, tenantID string) (CurrencyList, error) {
	if s.settings == nil {
		return CurrencyList{}, errSettingsUnavailable(errors.New("settings source not configured"))
	}
	settings, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return CurrencyList{}, errSettingsUnavailable(err)
	}
	if settings.BaseCurrency == "" {
		settings.BaseCurrency = s.base
	}
	return CurrencyList{BaseCurrency: settings.Base(), Currencies: currency.Active(settings)}, nil
}

// RateResult describes the conversion rate for a requested currency code.
type RateResult struct {
	Requested string           `json:"requested"`
	Rate      decimal.Decimal  `json:"rate"`
	Currency  currency.Display `json:"currency"`
	Degraded  bool             `json:"degraded,omitempty"`
}

// Rate looks up the rate of code. Unknown codes resolve to a rate of 1.
func (s *Service) Rate(ctx context.Context, tenantID, code string) RateResult {
	settings, degraded := s.displaySettings(ctx, tenantID)
	requested := strings.ToUpper(strings.TrimSpace(code))
	display := currency.Prepare(settings, requested)
	if display.Code != requested {
		degraded = true
	}
	return RateResult{
		Requested: requested,
		Rate:      currency.LookupRate(settings, requested),
		Currency:  display,
		Degraded:  degraded,
	}
}

// Conversion is the result of Convert.
type Conversion struct {
	Direction string           `json:"direction"`
	Amount    decimal.Decimal  `json:"amount"`
	Converted decimal.Decimal  `json:"converted"`
	Formatted string           `json:"formatted"`
	Currency  currency.Display `json:"currency"`
	Base      currency.Display `json:"base"`
	Degraded  bool             `json:"degraded,omitempty"`
}

// Convert converts an amount between the base currency and a display currency.
func (s *Service) Convert(ctx context.Context, tenantID string, req ConvertRequest) (Conversion, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return Conversion{}, validationError(err)
	}
	settings, degraded := s.displaySettings(ctx, tenantID)
	display := currency.Prepare(settings, req.Currency)
	base := currency.Prepare(settings, settings.Base())
	if display.Code != strings.ToUpper(req.Currency) {
		degraded = true
	}

	out := Conversion{Direction: req.Direction, Amount: req.Amount, Currency: display, Base: base, Degraded: degraded}
	if req.Direction == "to_base" {
		out.Converted = currency.ToBase(req.Amount, display.Rate)
		out.Formatted = currency.Format(out.Converted, base.Symbol)
	} else {
		out.Converted = currency.ToDisplay(req.Amount, display.Rate)
		out.Formatted = currency.Format(out.Converted, display.Symbol)
	}
	return out, nil
}

// displaySettings loads tenant settings for display purposes. Failures degrade to base-only
// settings and are reported through the second return value.
func (s *Service) displaySettings(ctx context.Context, tenantID string) (currency.Settings, bool) {
	fallback := currency.Settings{BaseCurrency: s.base}
	if s.settings == nil {
		return fallback, false
	}
	settings, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		obs.ObserveCurrencyFallback("settings_unavailable")
		logger := obs.LoggerFromContext(ctx, s.logger)
		logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("currency settings unavailable, using base currency")
		return fallback, true
	}
	if settings.BaseCurrency == "" {
		settings.BaseCurrency = s.base
	}
	return settings, false
}

// convertCalculation converts every monetary field of calc to the display currency. Rates are
// not applied to percentages or quantities.
func convertCalculation(calc pricing.Calculation, rate decimal.Decimal) pricing.Calculation {
	return calc.Map(func(d decimal.Decimal) decimal.Decimal {
		return currency.ToDisplay(d, rate)
	})
}

func formatTotals(c pricing.Calculation, symbol string) Totals {
	return Totals{
		Subtotal:   currency.Format(c.Subtotal, symbol),
		Discount:   currency.Format(c.TotalLineDiscount.Add(c.AdditionalDiscountAmount), symbol),
		Tax:        currency.Format(c.TotalLineTax.Add(c.AdditionalTaxAmount), symbol),
		Shipping:   currency.Format(c.ShippingCost, symbol),
		GrandTotal: currency.Format(c.GrandTotal, symbol),
	}
}

func newNumber(kind Kind) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return kind.numberPrefix() + "-" + id[:10]
}

func errSettingsUnavailable(err error) *common.AppError {
	return common.NewAppError("SETTINGS_UNAVAILABLE", "currency settings are unavailable", http.StatusServiceUnavailable, err)
}
