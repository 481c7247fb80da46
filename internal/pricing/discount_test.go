package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDiscountKind(t *testing.T) {
	cases := map[string]DiscountKind{
		"percentage": DiscountPercentage,
		" Percent ":  DiscountPercentage,
		"%":          DiscountPercentage,
		"fixed":      DiscountFixed,
		"":           DiscountFixed,
		"amount":     DiscountFixed,
	}
	for in, want := range cases {
		if got := ParseDiscountKind(in); got != want {
			t.Fatalf("ParseDiscountKind(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestDiscountApplyOnZeroSubtotal(t *testing.T) {
	d := DiscountSpec{Value: 10, Kind: DiscountFixed}
	if got := d.Apply(decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero discount on empty subtotal, got %s", got)
	}
}

func TestDiscountApplyPercentage(t *testing.T) {
	d := DiscountSpec{Value: 20, Kind: DiscountPercentage}
	got := d.Apply(decimal.NewFromInt(100_000))
	if !got.Equal(decimal.NewFromInt(20_000)) {
		t.Fatalf("expected 20000 discount, got %s", got)
	}
}
