// Package currency converts amounts between the base currency and a tenant's display
// currencies. Every function degrades to a sane default instead of failing because the
// results feed rendering paths.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultBase is the currency every stored amount is expressed in.
const DefaultBase = "USD"

var one = decimal.NewFromInt(1)

// Currency is one entry of a tenant's supported currency list.
type Currency struct {
	Code         string          `json:"code"`
	Symbol       string          `json:"symbol"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	IsActive     bool            `json:"isActive"`
}

// Settings is the currency section of a tenant's settings document.
type Settings struct {
	BaseCurrency        string     `json:"baseCurrency"`
	SupportedCurrencies []Currency `json:"supportedCurrencies"`
}

// Base returns the normalised base currency code.
func (s Settings) Base() string {
	code := normalise(s.BaseCurrency)
	if code == "" {
		return DefaultBase
	}
	return code
}

// Display is the resolved data needed to render amounts in a display currency.
type Display struct {
	Code   string          `json:"code"`
	Symbol string          `json:"symbol"`
	Rate   decimal.Decimal `json:"rate"`
}

// ToDisplay converts a base amount with the given rate, rounded to cents. A missing or
// non-positive rate means no conversion.
func ToDisplay(amountBase, rate decimal.Decimal) decimal.Decimal {
	if amountBase.IsZero() {
		return decimal.Zero
	}
	return amountBase.Mul(effectiveRate(rate)).Round(2)
}

// ToBase converts a display amount back to the base currency, rounded to cents. The amount
// is returned unchanged when the rate is missing or non-positive.
func ToBase(amountDisplay, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return amountDisplay
	}
	return amountDisplay.Div(rate).Round(2)
}

// ParseRate parses a stored exchange rate. Non-numeric values yield zero, which every
// converter treats as a rate of 1.
func ParseRate(value string) decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// LookupRate returns the exchange rate for code. The base currency, unknown codes, inactive
// entries and non-positive stored rates all yield 1.
func LookupRate(settings Settings, code string) decimal.Decimal {
	code = normalise(code)
	if code == "" || code == settings.Base() {
		return one
	}
	entry, ok := findActive(settings, code)
	if !ok {
		return one
	}
	return effectiveRate(entry.ExchangeRate)
}

// Prepare resolves the display data for code, falling back to the base currency when the
// code is unknown or inactive.
func Prepare(settings Settings, code string) Display {
	base := settings.Base()
	code = normalise(code)
	if code != "" && code != base {
		if entry, ok := findActive(settings, code); ok {
			return Display{Code: code, Symbol: symbolOrCode(entry.Symbol, code), Rate: effectiveRate(entry.ExchangeRate)}
		}
	}
	symbol := ""
	for _, c := range settings.SupportedCurrencies {
		if normalise(c.Code) == base {
			symbol = c.Symbol
			break
		}
	}
	if symbol == "" && base == DefaultBase {
		symbol = "$"
	}
	return Display{Code: base, Symbol: symbolOrCode(symbol, base), Rate: one}
}

// Active lists the active currencies including the base currency first.
func Active(settings Settings) []Display {
	out := []Display{Prepare(settings, settings.Base())}
	for _, c := range settings.SupportedCurrencies {
		code := normalise(c.Code)
		if !c.IsActive || code == "" || code == settings.Base() {
			continue
		}
		out = append(out, Display{Code: code, Symbol: symbolOrCode(c.Symbol, code), Rate: effectiveRate(c.ExchangeRate)})
	}
	return out
}

func findActive(settings Settings, code string) (Currency, bool) {
	for _, c := range settings.SupportedCurrencies {
		if c.IsActive && normalise(c.Code) == code {
			return c, true
		}
	}
	return Currency{}, false
}

func effectiveRate(rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return one
	}
	return rate
}

func symbolOrCode(symbol, code string) string {
	if strings.TrimSpace(symbol) == "" {
		return code + " "
	}
	return symbol
}

func normalise(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
