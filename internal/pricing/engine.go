package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value kept at full precision until output.
type Money = decimal.Decimal

// moneyPlaces is the number of decimal digits retained on every monetary output.
const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// LineItem describes an invoice row used for totals calculation.
type LineItem struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"price"`
}

// Amount returns quantity x unit price without rounding.
func (it LineItem) Amount() Money {
	return decimal.NewFromFloat(Coerce(it.Quantity)).Mul(decimal.NewFromFloat(Coerce(it.UnitPrice)))
}

// RowAmount returns the row amount rounded for display in the items table.
func (it LineItem) RowAmount() Money {
	return Round(it.Amount())
}

// Totals aggregates computed invoice components. Every field is rounded to two decimals.
type Totals struct {
	Subtotal       Money
	DiscountAmount Money
	TaxAmount      Money
	Total          Money

	taxableBase Money
}

// TaxableBase returns subtotal minus discount, rounded to two decimals.
func (t Totals) TaxableBase() Money {
	return t.taxableBase
}

// MarshalJSON encodes amounts as JSON numbers with exactly two decimal digits.
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subtotal       json.Number `json:"subtotal"`
		DiscountAmount json.Number `json:"discountAmount"`
		TaxableBase    json.Number `json:"taxableBase"`
		TaxAmount      json.Number `json:"taxAmount"`
		Total          json.Number `json:"total"`
	}{
		Subtotal:       json.Number(t.Subtotal.StringFixed(moneyPlaces)),
		DiscountAmount: json.Number(t.DiscountAmount.StringFixed(moneyPlaces)),
		TaxableBase:    json.Number(t.taxableBase.StringFixed(moneyPlaces)),
		TaxAmount:      json.Number(t.TaxAmount.StringFixed(moneyPlaces)),
		Total:          json.Number(t.Total.StringFixed(moneyPlaces)),
	})
}

// ComputeTotals calculates invoice totals given the provided inputs. It never fails: malformed
// numbers count as zero.
func ComputeTotals(items []LineItem, discount DiscountSpec, taxRate float64) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount())
	}

	discountAmount := discount.Apply(subtotal)
	taxable := subtotal.Sub(discountAmount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	tax := decimal.Zero
	if rate := Coerce(taxRate); rate > 0 {
		tax = taxable.Mul(decimal.NewFromFloat(rate)).Div(hundred)
	}

	total := taxable.Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:       Round(subtotal),
		DiscountAmount: Round(discountAmount),
		TaxAmount:      Round(tax),
		Total:          Round(total),
		taxableBase:    Round(taxable),
	}
}

// Round applies half-up rounding to two decimal places.
func Round(m Money) Money {
	return m.Round(moneyPlaces)
}

// Coerce maps negative, NaN and infinite values to zero.
func Coerce(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// ParseAmount converts a form value to a non-negative number, falling back to zero when the
// value is empty or not numeric.
func ParseAmount(value string) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return Coerce(v)
}
