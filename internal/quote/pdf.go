package quote

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/toko-pricing/internal/currency"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Renderer renders priced documents as A4 PDFs using the core Helvetica font.
type Renderer struct {
	CompanyName string
}

type column struct {
	title string
	width float64
	align string
}

var lineColumns = []column{
	{"Item", 70, "L"},
	{"Qty", 15, "R"},
	{"Subtotal", 26, "R"},
	{"Discount", 24, "R"},
	{"Tax", 22, "R"},
	{"Total", 28, "R"},
}

// Render writes res as a PDF document to w. Amounts are printed in the display currency.
func (r Renderer) Render(w io.Writer, res Result) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(fmt.Sprintf("%s %s", res.Kind.Title(), res.Number)), false)
	pdf.SetCreator(tr(r.companyName()), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(r.companyName()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s %s", res.Kind.Title(), res.Number)), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Date: "+res.IssuedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	if res.Customer != "" {
		pdf.CellFormat(0, 6, tr("Customer: "+trim(res.Customer, 80)), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Currency: %s", res.Currency.Code), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, col := range lineColumns {
		pdf.CellFormat(col.width, 7, col.title, "B", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	symbol := res.Currency.Symbol
	for _, line := range res.Display.Items {
		cells := []string{
			trim(line.Name, 40),
			fmt.Sprintf("%d", line.Quantity),
			currency.Format(line.LineSubtotal, symbol),
			currency.Format(line.LineDiscountAmount, symbol),
			currency.Format(line.LineTaxAmount, symbol),
			currency.Format(line.LineTotal, symbol),
		}
		for i, col := range lineColumns {
			pdf.CellFormat(col.width, 6, tr(cells[i]), "", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	summary := summaryRows(res.Display, symbol)
	labelWidth, valueWidth := 120.0, 65.0
	for i, row := range summary {
		style := ""
		if i == len(summary)-1 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(labelWidth, 6, tr(row[0]), "", 0, "R", false, 0, "")
		pdf.CellFormat(valueWidth, 6, tr(row[1]), "", 1, "R", false, 0, "")
	}

	if res.Currency.Code != res.BaseCurrency {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 8)
		note := fmt.Sprintf("Converted from %s at 1 %s = %s %s.", res.BaseCurrency, res.BaseCurrency, res.Currency.Rate.String(), res.Currency.Code)
		pdf.CellFormat(0, 5, note, "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (r Renderer) companyName() string {
	if r.CompanyName == "" {
		return "Toko"
	}
	return r.CompanyName
}

func summaryRows(c pricing.Calculation, symbol string) [][2]string {
	rows := [][2]string{
		{"Subtotal", currency.Format(c.Subtotal, symbol)},
	}
	if !c.TotalLineDiscount.IsZero() {
		rows = append(rows, [2]string{"Line discounts", "-" + currency.Format(c.TotalLineDiscount, symbol)})
	}
	for _, d := range c.AdditionalDiscounts {
		rows = append(rows, [2]string{chargeLabel(d), "-" + currency.Format(d.Amount, symbol)})
	}
	if !c.TotalLineTax.IsZero() {
		rows = append(rows, [2]string{"Line taxes", currency.Format(c.TotalLineTax, symbol)})
	}
	for _, t := range c.AdditionalTaxes {
		rows = append(rows, [2]string{chargeLabel(t), currency.Format(t.Amount, symbol)})
	}
	if !c.ShippingCost.IsZero() {
		rows = append(rows, [2]string{"Shipping", currency.Format(c.ShippingCost, symbol)})
	}
	return append(rows, [2]string{"Grand total", currency.Format(c.GrandTotal, symbol)})
}

func chargeLabel(c pricing.ChargeAmount) string {
	name := c.Name
	if name == "" {
		name = "Charge"
	}
	return fmt.Sprintf("%s (%s%%)", trim(name, 40), c.RatePercent.String())
}

func trim(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "..."
}
