package preview

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/noah-isme/backend-invoice/internal/pricing"
)

const displayDateLayout = "January 2, 2006"

var printer = message.NewPrinter(language.English)

// FormatMoney renders an amount with grouping separators and exactly two decimals, prefixed by symbol.
func FormatMoney(symbol string, amount pricing.Money) string {
	return symbol + printer.Sprintf("%.2f", pricing.Round(amount).InexactFloat64())
}

// FormatQuantity renders a quantity without trailing zeros.
func FormatQuantity(q float64) string {
	s := printer.Sprintf("%.4f", pricing.Coerce(q))
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// FormatDisplayDate turns a YYYY-MM-DD value into "January 2, 2006". Unparsable input is returned as is.
func FormatDisplayDate(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(displayDateLayout)
		}
	}
	return trimmed
}
