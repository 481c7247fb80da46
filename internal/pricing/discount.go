package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a discount value is interpreted.
type DiscountKind string

const (
	// DiscountFixed is a currency amount taken off the subtotal.
	DiscountFixed DiscountKind = "fixed"
	// DiscountPercentage is a percentage of the subtotal.
	DiscountPercentage DiscountKind = "percentage"
)

// ParseDiscountKind maps form values onto a kind. Anything that is not a percentage is fixed.
func ParseDiscountKind(value string) DiscountKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percentage", "percent", "%":
		return DiscountPercentage
	default:
		return DiscountFixed
	}
}

// DiscountSpec captures the discount entered on the invoice.
type DiscountSpec struct {
	Value float64      `json:"value"`
	Kind  DiscountKind `json:"kind"`
}

// Apply determines the discount amount for subtotal. The result is never negative and never
// exceeds subtotal.
func (d DiscountSpec) Apply(subtotal Money) Money {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	value := Coerce(d.Value)
	if value == 0 {
		return decimal.Zero
	}
	discount := decimal.NewFromFloat(value)
	if ParseDiscountKind(string(d.Kind)) == DiscountPercentage {
		discount = subtotal.Mul(discount).Div(hundred)
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount
}
