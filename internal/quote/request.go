package quote

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Kind is the type of document being priced.
type Kind string

const (
	KindInvoice   Kind = "invoice"
	KindOrder     Kind = "order"
	KindQuotation Kind = "quotation"
)

func (k Kind) numberPrefix() string {
	switch k {
	case KindOrder:
		return "ORD"
	case KindQuotation:
		return "QUO"
	default:
		return "INV"
	}
}

// Title is the heading printed on rendered documents.
func (k Kind) Title() string {
	switch k {
	case KindOrder:
		return "Order"
	case KindQuotation:
		return "Quotation"
	default:
		return "Invoice"
	}
}

// ItemInput is one line of a pricing request.
type ItemInput struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	TaxRatePercent  decimal.Decimal `json:"taxRatePercent"`
}

// ChargeInput is a document level discount or tax.
type ChargeInput struct {
	Name        string          `json:"name" validate:"required,max=100"`
	RatePercent decimal.Decimal `json:"ratePercent"`
	Kind        string          `json:"kind,omitempty"`
}

// ShippingInput carries the shipping cost in the base currency.
type ShippingInput struct {
	Cost decimal.Decimal `json:"cost"`
}

// Request is the payload accepted by the pricing endpoints. Amounts are in the tenant's base
// currency; Currency selects the display currency. Discounts and Taxes are typed lists, while
// Charges is a mixed list whose entries must name their kind.
type Request struct {
	Kind      Kind          `json:"kind,omitempty" validate:"omitempty,oneof=invoice order quotation"`
	Number    string        `json:"number,omitempty" validate:"max=64"`
	Customer  string        `json:"customer,omitempty" validate:"max=200"`
	Currency  string        `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Items     []ItemInput   `json:"items" validate:"max=500,dive"`
	Discounts []ChargeInput `json:"discounts,omitempty" validate:"max=50,dive"`
	Taxes     []ChargeInput `json:"taxes,omitempty" validate:"max=50,dive"`
	Charges   []ChargeInput `json:"charges,omitempty" validate:"max=100,dive"`
	Shipping  ShippingInput `json:"shipping"`
}

// ConvertRequest is the payload of POST /currencies/convert.
type ConvertRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" validate:"required,len=3,alpha"`
	Direction string          `json:"direction" validate:"required,oneof=to_display to_base"`
}

// FieldError is one entry of a VALIDATION_FAILED response.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.BadRequest("invalid payload", err)
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		details = append(details, FieldError{Field: field, Rule: fe.Tag()})
	}
	return common.NewAppError("VALIDATION_FAILED", "payload validation failed", http.StatusBadRequest, err).WithDetails(details)
}

func (r Request) kind() Kind {
	if r.Kind == "" {
		return KindInvoice
	}
	return r.Kind
}

func (r Request) lineItems() []pricing.LineItem {
	out := make([]pricing.LineItem, len(r.Items))
	for i, it := range r.Items {
		out[i] = pricing.LineItem{
			Name:            strings.TrimSpace(it.Name),
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
			TaxRatePercent:  it.TaxRatePercent,
		}
	}
	return out
}

// chargeOrigin points at the request list entry a merged charge came from.
type chargeOrigin struct {
	list  string
	index int
}

// mergedCharges holds the typed lists followed by the matching entries of the mixed Charges list.
type mergedCharges struct {
	discounts, taxes            []pricing.AdditionalCharge
	discountOrigins, taxOrigins []chargeOrigin
}

// charges merges the typed lists with the mixed Charges list.
func (r Request) charges() (mergedCharges, error) {
	m := mergedCharges{
		discounts:       toCharges(r.Discounts),
		taxes:           toCharges(r.Taxes),
		discountOrigins: origins("discounts", len(r.Discounts)),
		taxOrigins:      origins("taxes", len(r.Taxes)),
	}
	if len(r.Charges) == 0 {
		return m, nil
	}
	mixed := toCharges(r.Charges)
	d, t, err := pricing.SplitCharges(mixed)
	if err != nil {
		return mergedCharges{}, err
	}
	for j, c := range mixed {
		if c.Kind == pricing.ChargeDiscount {
			m.discountOrigins = append(m.discountOrigins, chargeOrigin{list: "charges", index: j})
		} else {
			m.taxOrigins = append(m.taxOrigins, chargeOrigin{list: "charges", index: j})
		}
	}
	m.discounts = append(m.discounts, d...)
	m.taxes = append(m.taxes, t...)
	return m, nil
}

// locate rewrites an InvalidInputError raised on a merged list so it names the entry the client
// sent.
func (m mergedCharges) locate(err error) error {
	var invalid *pricing.InvalidInputError
	if !errors.As(err, &invalid) || invalid.Index < 0 {
		return err
	}
	list, attr, _ := strings.Cut(invalid.Field, ".")
	var from []chargeOrigin
	switch list {
	case "discounts":
		from = m.discountOrigins
	case "taxes":
		from = m.taxOrigins
	default:
		return err
	}
	if invalid.Index >= len(from) || from[invalid.Index].list == list {
		return err
	}
	origin := from[invalid.Index]
	return &pricing.InvalidInputError{Field: origin.list + "." + attr, Index: origin.index, Reason: invalid.Reason}
}

func origins(list string, n int) []chargeOrigin {
	out := make([]chargeOrigin, n)
	for i := range out {
		out[i] = chargeOrigin{list: list, index: i}
	}
	return out
}

func toCharges(in []ChargeInput) []pricing.AdditionalCharge {
	if len(in) == 0 {
		return nil
	}
	out := make([]pricing.AdditionalCharge, len(in))
	for i, c := range in {
		out[i] = pricing.AdditionalCharge{
			Name:        strings.TrimSpace(c.Name),
			RatePercent: c.RatePercent,
			Kind:        pricing.ChargeKind(strings.ToLower(strings.TrimSpace(c.Kind))),
		}
	}
	return out
}
