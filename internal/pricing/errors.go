package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is matched by every *InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid pricing input")

// InvalidInputError reports the first input that violates a pricing invariant.
// Index is the position within the offending list, or -1 for scalar inputs.
type InvalidInputError struct {
	Field  string
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	if e == nil {
		return ""
	}
	if e.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidInput).
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func validate(items []LineItem, discounts, taxes []AdditionalCharge, shipping Shipping) error {
	for i, it := range items {
		if it.Quantity < 0 {
			return &InvalidInputError{Field: "items.quantity", Index: i, Reason: "must not be negative"}
		}
		if it.UnitPrice.IsNegative() {
			return &InvalidInputError{Field: "items.unitPrice", Index: i, Reason: "must not be negative"}
		}
		if !inPercentRange(it.DiscountPercent) {
			return &InvalidInputError{Field: "items.discountPercent", Index: i, Reason: "must be between 0 and 100"}
		}
		if !inPercentRange(it.TaxRatePercent) {
			return &InvalidInputError{Field: "items.taxRatePercent", Index: i, Reason: "must be between 0 and 100"}
		}
	}
	if err := validateCharges("discounts", discounts, ChargeDiscount); err != nil {
		return err
	}
	// Aggregate discounts share one base, so together they may not exceed it.
	combined := zero
	for _, d := range discounts {
		combined = combined.Add(d.RatePercent)
	}
	if combined.GreaterThan(hundred) {
		return &InvalidInputError{Field: "discounts.ratePercent", Index: -1, Reason: "combined discounts must not exceed 100"}
	}
	if err := validateCharges("taxes", taxes, ChargeTax); err != nil {
		return err
	}
	if shipping.Cost.IsNegative() {
		return &InvalidInputError{Field: "shipping.cost", Index: -1, Reason: "must not be negative"}
	}
	return nil
}

func validateCharges(field string, charges []AdditionalCharge, want ChargeKind) error {
	for i, c := range charges {
		if c.Kind != "" && c.Kind != want {
			return &InvalidInputError{Field: field + ".kind", Index: i, Reason: fmt.Sprintf("must be %s", want)}
		}
		if !inPercentRange(c.RatePercent) {
			return &InvalidInputError{Field: field + ".ratePercent", Index: i, Reason: "must be between 0 and 100"}
		}
	}
	return nil
}

func inPercentRange(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
