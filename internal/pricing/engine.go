package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// ChargeKind tags an aggregate charge as a discount or a tax.
type ChargeKind string

const (
	ChargeDiscount ChargeKind = "discount"
	ChargeTax      ChargeKind = "tax"
)

// LineItem describes a single product line used for pricing calculation.
type LineItem struct {
	Name            string          `json:"name"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	TaxRatePercent  decimal.Decimal `json:"taxRatePercent"`
}

// AdditionalCharge is a document level discount or tax expressed as a percentage.
type AdditionalCharge struct {
	Name        string          `json:"name"`
	RatePercent decimal.Decimal `json:"ratePercent"`
	Kind        ChargeKind      `json:"kind"`
}

// Shipping carries the flat shipping cost. The zero value means free shipping.
type Shipping struct {
	Cost decimal.Decimal `json:"cost"`
}

// LineCalculation is the computed breakdown for a single line item.
type LineCalculation struct {
	Name               string          `json:"name"`
	Quantity           int64           `json:"quantity"`
	LineSubtotal       decimal.Decimal `json:"lineSubtotal"`
	LineDiscountAmount decimal.Decimal `json:"lineDiscountAmount"`
	LineAfterDiscount  decimal.Decimal `json:"lineAfterDiscount"`
	LineTaxAmount      decimal.Decimal `json:"lineTaxAmount"`
	LineTotal          decimal.Decimal `json:"lineTotal"`
}

// ChargeAmount records the amount produced by one aggregate charge.
type ChargeAmount struct {
	Name        string          `json:"name"`
	RatePercent decimal.Decimal `json:"ratePercent"`
	Amount      decimal.Decimal `json:"amount"`
}

// Calculation aggregates every computed pricing component of a document.
type Calculation struct {
	Items                    []LineCalculation `json:"items"`
	Subtotal                 decimal.Decimal   `json:"subtotal"`
	TotalLineDiscount        decimal.Decimal   `json:"totalLineDiscount"`
	TotalLineTax             decimal.Decimal   `json:"totalLineTax"`
	PreDiscountBase          decimal.Decimal   `json:"preDiscountBase"`
	AdditionalDiscounts      []ChargeAmount    `json:"additionalDiscounts"`
	AdditionalTaxes          []ChargeAmount    `json:"additionalTaxes"`
	AdditionalDiscountAmount decimal.Decimal   `json:"additionalDiscountAmount"`
	AdditionalTaxAmount      decimal.Decimal   `json:"additionalTaxAmount"`
	ShippingCost             decimal.Decimal   `json:"shippingCost"`
	GrandTotal               decimal.Decimal   `json:"grandTotal"`
}

// Calculate computes document totals for the provided line items, aggregate charges and
// shipping. Every input is validated before anything is computed, so the caller either gets
// a complete Calculation or an *InvalidInputError.
func Calculate(items []LineItem, discounts, taxes []AdditionalCharge, shipping Shipping) (Calculation, error) {
	if err := validate(items, discounts, taxes, shipping); err != nil {
		return Calculation{}, err
	}

	calc := Calculation{
		Items:                    make([]LineCalculation, 0, len(items)),
		Subtotal:                 zero,
		TotalLineDiscount:        zero,
		TotalLineTax:             zero,
		AdditionalDiscounts:      make([]ChargeAmount, 0, len(discounts)),
		AdditionalTaxes:          make([]ChargeAmount, 0, len(taxes)),
		AdditionalDiscountAmount: zero,
		AdditionalTaxAmount:      zero,
		ShippingCost:             shipping.Cost,
	}

	for _, it := range items {
		line := computeLine(it)
		calc.Items = append(calc.Items, line)
		calc.Subtotal = calc.Subtotal.Add(line.LineSubtotal)
		calc.TotalLineDiscount = calc.TotalLineDiscount.Add(line.LineDiscountAmount)
		calc.TotalLineTax = calc.TotalLineTax.Add(line.LineTaxAmount)
	}
	calc.PreDiscountBase = calc.Subtotal.Sub(calc.TotalLineDiscount)

	for _, d := range discounts {
		amount := percentOf(calc.PreDiscountBase, d.RatePercent)
		calc.AdditionalDiscounts = append(calc.AdditionalDiscounts, ChargeAmount{Name: d.Name, RatePercent: d.RatePercent, Amount: amount})
		calc.AdditionalDiscountAmount = calc.AdditionalDiscountAmount.Add(amount)
	}

	// Aggregate taxes apply after every aggregate discount.
	taxable := calc.PreDiscountBase.Sub(calc.AdditionalDiscountAmount)
	for _, t := range taxes {
		amount := percentOf(taxable, t.RatePercent)
		calc.AdditionalTaxes = append(calc.AdditionalTaxes, ChargeAmount{Name: t.Name, RatePercent: t.RatePercent, Amount: amount})
		calc.AdditionalTaxAmount = calc.AdditionalTaxAmount.Add(amount)
	}

	calc.GrandTotal = calc.PreDiscountBase.
		Sub(calc.AdditionalDiscountAmount).
		Add(calc.TotalLineTax).
		Add(calc.AdditionalTaxAmount).
		Add(calc.ShippingCost)
	return calc, nil
}

// SplitCharges separates a mixed list of aggregate charges into discounts and taxes,
// preserving the relative order of each kind.
func SplitCharges(charges []AdditionalCharge) (discounts, taxes []AdditionalCharge, err error) {
	for i, c := range charges {
		switch ChargeKind(strings.ToLower(strings.TrimSpace(string(c.Kind)))) {
		case ChargeDiscount:
			c.Kind = ChargeDiscount
			discounts = append(discounts, c)
		case ChargeTax:
			c.Kind = ChargeTax
			taxes = append(taxes, c)
		default:
			return nil, nil, &InvalidInputError{Field: "charges.kind", Index: i, Reason: "must be discount or tax"}
		}
	}
	return discounts, taxes, nil
}

// Rounded returns a copy of the calculation with every monetary field rounded to places
// decimal digits. Rounding is only meant for the display or serialization boundary.
func (c Calculation) Rounded(places int32) Calculation {
	return c.Map(func(d decimal.Decimal) decimal.Decimal { return d.Round(places) })
}

// Map returns a copy of the calculation with fn applied to every monetary field. Rates and
// quantities are left untouched.
func (c Calculation) Map(fn func(decimal.Decimal) decimal.Decimal) Calculation {
	out := Calculation{
		Items:                    make([]LineCalculation, 0, len(c.Items)),
		Subtotal:                 fn(c.Subtotal),
		TotalLineDiscount:        fn(c.TotalLineDiscount),
		TotalLineTax:             fn(c.TotalLineTax),
		PreDiscountBase:          fn(c.PreDiscountBase),
		AdditionalDiscounts:      mapCharges(c.AdditionalDiscounts, fn),
		AdditionalTaxes:          mapCharges(c.AdditionalTaxes, fn),
		AdditionalDiscountAmount: fn(c.AdditionalDiscountAmount),
		AdditionalTaxAmount:      fn(c.AdditionalTaxAmount),
		ShippingCost:             fn(c.ShippingCost),
		GrandTotal:               fn(c.GrandTotal),
	}
	for _, line := range c.Items {
		out.Items = append(out.Items, LineCalculation{
			Name:               line.Name,
			Quantity:           line.Quantity,
			LineSubtotal:       fn(line.LineSubtotal),
			LineDiscountAmount: fn(line.LineDiscountAmount),
			LineAfterDiscount:  fn(line.LineAfterDiscount),
			LineTaxAmount:      fn(line.LineTaxAmount),
			LineTotal:          fn(line.LineTotal),
		})
	}
	return out
}

func computeLine(it LineItem) LineCalculation {
	subtotal := it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
	discount := percentOf(subtotal, it.DiscountPercent)
	afterDiscount := subtotal.Sub(discount)
	tax := percentOf(afterDiscount, it.TaxRatePercent)
	return LineCalculation{
		Name:               it.Name,
		Quantity:           it.Quantity,
		LineSubtotal:       subtotal,
		LineDiscountAmount: discount,
		LineAfterDiscount:  afterDiscount,
		LineTaxAmount:      tax,
		LineTotal:          afterDiscount.Add(tax),
	}
}

func percentOf(base, rate decimal.Decimal) decimal.Decimal {
	if base.IsZero() || rate.IsZero() {
		return zero
	}
	return base.Mul(rate).Div(hundred)
}

func mapCharges(in []ChargeAmount, fn func(decimal.Decimal) decimal.Decimal) []ChargeAmount {
	out := make([]ChargeAmount, 0, len(in))
	for _, c := range in {
		out = append(out, ChargeAmount{Name: c.Name, RatePercent: c.RatePercent, Amount: fn(c.Amount)})
	}
	return out
}
