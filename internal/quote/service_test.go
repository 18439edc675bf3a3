package quote_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/currency"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/quote"
)

type stubSettings struct {
	settings currency.Settings
	err      error
}

func (s stubSettings) Get(context.Context, string) (currency.Settings, error) {
	return s.settings, s.err
}

func tenantSettings() currency.Settings {
	return currency.Settings{
		BaseCurrency: "USD",
		SupportedCurrencies: []currency.Currency{
			{Code: "USD", Symbol: "$", ExchangeRate: decimal.NewFromInt(1), IsActive: true},
			{Code: "EUR", Symbol: "€", ExchangeRate: decimal.RequireFromString("0.9"), IsActive: true},
			{Code: "GBP", Symbol: "£", ExchangeRate: decimal.RequireFromString("0.8"), IsActive: false},
		},
	}
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(src quote.SettingsSource) *quote.Service {
	return quote.NewService(quote.ServiceConfig{
		Settings:     src,
		BaseCurrency: "USD",
		Now:          func() time.Time { return fixedNow },
	})
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleRequest(currencyCode string) quote.Request {
	return quote.Request{
		Currency: currencyCode,
		Items: []quote.ItemInput{
			{Name: "Widget", Quantity: 2, UnitPrice: d("50"), TaxRatePercent: d("10")},
		},
	}
}

func TestPriceConvertsToDisplayCurrency(t *testing.T) {
	svc := newService(stubSettings{settings: tenantSettings()})

	res, err := svc.Price(context.Background(), "acme", sampleRequest("eur"))
	require.NoError(t, err)
	require.Equal(t, quote.KindInvoice, res.Kind)
	require.True(t, strings.HasPrefix(res.Number, "INV-"))
	require.Equal(t, fixedNow, res.IssuedAt)
	require.Equal(t, "USD", res.BaseCurrency)
	require.Equal(t, "EUR", res.Currency.Code)
	require.False(t, res.Degraded)

	require.Equal(t, "110", res.Base.GrandTotal.String())
	require.Equal(t, "99", res.Display.GrandTotal.String())
	require.Equal(t, "90", res.Display.Subtotal.String())
	require.Equal(t, "€99.00", res.Formatted.GrandTotal)
	require.Equal(t, "€9.00", res.Formatted.Tax)
	require.Equal(t, "€0.00", res.Formatted.Shipping)
}

func TestPriceFallsBackForUnknownCurrency(t *testing.T) {
	svc := newService(stubSettings{settings: tenantSettings()})

	for _, code := range []string{"GBP", "ZZZ"} {
		res, err := svc.Price(context.Background(), "acme", sampleRequest(code))
		require.NoError(t, err)
		require.True(t, res.Degraded, code)
		require.Equal(t, "USD", res.Currency.Code)
		require.True(t, res.Display.GrandTotal.Equal(res.Base.GrandTotal))
		require.Equal(t, "$110.00", res.Formatted.GrandTotal)
	}
}

func TestPriceDegradesWhenSettingsUnavailable(t *testing.T) {
	svc := newService(stubSettings{err: errors.New("redis down")})

	res, err := svc.Price(context.Background(), "acme", sampleRequest("EUR"))
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, "USD", res.Currency.Code)
	require.Equal(t, "$110.00", res.Formatted.GrandTotal)
}

func TestPriceRejectsInvalidInput(t *testing.T) {
	svc := newService(stubSettings{settings: tenantSettings()})
	req := sampleRequest("")
	req.Items[0].DiscountPercent = d("120")

	_, err := svc.Price(context.Background(), "acme", req)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
	var invalid *pricing.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "items.discountPercent", invalid.Field)
	require.Equal(t, 0, invalid.Index)
}

func TestPriceValidatesPayloadShape(t *testing.T) {
	svc := newService(stubSettings{settings: tenantSettings()})
	req := sampleRequest("EURO")
	req.Kind = "receipt"

	_, err := svc.Price(context.Background(), "acme", req)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_FAILED", appErr.Code)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)

	details, ok := appErr.Details.([]quote.FieldError)
	require.True(t, ok)
	require.ElementsMatch(t, []quote.FieldError{
		{Field: "kind", Rule: "oneof"},
		{Field: "currency", Rule: "len"},
	}, details)
}

func TestPriceMixedCharges(t *testing.T) {
	svc := newService(nil)
	req := quote.Request{
		Kind:   quote.KindQuotation,
		Number: "Q-42",
		Items:  []quote.ItemInput{{Name: "Desk", Quantity: 1, UnitPrice: d("100")}},
		Charges: []quote.ChargeInput{
			{Name: "VAT", RatePercent: d("10"), Kind: "TAX"},
			{Name: "Promo", RatePercent: d("10"), Kind: "discount"},
		},
		Shipping: quote.ShippingInput{Cost: d("5")},
	}

	res, err := svc.Price(context.Background(), "acme", req)
	require.NoError(t, err)
	require.Equal(t, "Q-42", res.Number)
	require.Equal(t, "10", res.Base.AdditionalDiscountAmount.String())
	require.Equal(t, "9", res.Base.AdditionalTaxAmount.String())
	require.Equal(t, "104", res.Base.GrandTotal.String())

	req.Charges = append(req.Charges, quote.ChargeInput{Name: "Mystery", RatePercent: d("1")})
	_, err = svc.Price(context.Background(), "acme", req)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestPriceReportsMixedChargePosition(t *testing.T) {
	svc := newService(nil)
	req := quote.Request{
		Items:     []quote.ItemInput{{Name: "Desk", Quantity: 1, UnitPrice: d("100")}},
		Discounts: []quote.ChargeInput{{Name: "Member", RatePercent: d("5")}},
		Charges: []quote.ChargeInput{
			{Name: "VAT", RatePercent: d("10"), Kind: "tax"},
			{Name: "Broken", RatePercent: d("150"), Kind: "discount"},
		},
	}

	_, err := svc.Price(context.Background(), "acme", req)
	var invalid *pricing.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "charges.ratePercent", invalid.Field)
	require.Equal(t, 1, invalid.Index)

	req.Charges = nil
	req.Discounts = append(req.Discounts, quote.ChargeInput{Name: "Broken", RatePercent: d("-1")})
	_, err = svc.Price(context.Background(), "acme", req)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "discounts.ratePercent", invalid.Field)
	require.Equal(t, 1, invalid.Index)
}

func TestGeneratedNumberUsesKindPrefix(t *testing.T) {
	svc := newService(nil)
	req := sampleRequest("")
	req.Kind = quote.KindOrder

	res, err := svc.Price(context.Background(), "acme", req)
	require.NoError(t, err)
	require.Regexp(t, `^ORD-[0-9A-F]{10}$`, res.Number)
}

func TestRate(t *testing.T) {
	svc := newService(stubSettings{settings: tenantSettings()})

	eur := svc.Rate(context.Background(), "acme", "eur")
	require.Equal(t, "EUR", eur.Requested)
	require.Equal(t, "0.9", eur.Rate.String())
	require.False(t, eur.Degraded)

	unknown := svc.Rate(context.Background(), "acme", "XYZ")
	require.Equal(t, "1", unknown.Rate.String())
	require.Equal(t, "USD", unknown.Currency.Code)
	require.True(t, unknown.Degraded)
}

func TestConvert(t *testing.T) {
	svc := newService(stubSettings{settings: tenantSettings()})

	out, err := svc.Convert(context.Background(), "acme", quote.ConvertRequest{Amount: d("1234.5"), Currency: "EUR", Direction: "to_display"})
	require.NoError(t, err)
	require.Equal(t, "1111.05", out.Converted.String())
	require.Equal(t, "€1,111.05", out.Formatted)

	back, err := svc.Convert(context.Background(), "acme", quote.ConvertRequest{Amount: d("90"), Currency: "EUR", Direction: "to_base"})
	require.NoError(t, err)
	require.Equal(t, "100", back.Converted.String())
	require.Equal(t, "$100.00", back.Formatted)

	_, err = svc.Convert(context.Background(), "acme", quote.ConvertRequest{Amount: d("1"), Currency: "EUR", Direction: "sideways"})
	require.True(t, common.IsAppError(err))
}

func TestCurrenciesSurfacesStoreFailure(t *testing.T) {
	svc := newService(stubSettings{err: errors.New("db down")})

	_, err := svc.Currencies(context.Background(), "acme")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "SETTINGS_UNAVAILABLE", appErr.Code)

	svc = newService(stubSettings{settings: tenantSettings()})
	list, err := svc.Currencies(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "USD", list.BaseCurrency)
	require.Len(t, list.Currencies, 2)
	require.Equal(t, "EUR", list.Currencies[1].Code)
}
