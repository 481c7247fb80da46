package preview

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/pricing"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Options configures currency presentation.
type Options struct {
	Symbol       string
	CurrencyCode string
}

// Renderer turns drafts into standalone HTML documents ready for rasterization.
type Renderer struct {
	tmpl *template.Template
	opts Options
}

// NewRenderer parses the embedded invoice template.
func NewRenderer(opts Options) (*Renderer, error) {
	tmpl, err := template.New("invoice.html.tmpl").Funcs(template.FuncMap{
		"lines": func(s string) []string { return strings.Split(strings.TrimSpace(s), "\n") },
	}).ParseFS(templateFS, "templates/invoice.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	return &Renderer{tmpl: tmpl, opts: opts}, nil
}

type itemView struct {
	Code        string
	Description string
	Quantity    string
	Price       string
	Amount      string
}

type documentView struct {
	Company      draft.Company
	Client       draft.Client
	Logo         template.URL
	Number       string
	Date         string
	DueDate      string
	CurrencyCode string
	Items        []itemView
	Subtotal     string
	Discount     string
	ShowDiscount bool
	TaxRate      string
	TaxAmount    string
	ShowTax      bool
	Total        string
	Notes        string
	Terms        string
	Payment      string
}

// Render writes the HTML document for d to w.
func (r *Renderer) Render(w io.Writer, d *draft.Draft) error {
	if d == nil {
		return fmt.Errorf("render preview: nil draft")
	}
	return r.tmpl.Execute(w, r.view(d))
}

// RenderString is Render into a string.
func (r *Renderer) RenderString(d *draft.Draft) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) view(d *draft.Draft) documentView {
	totals := d.Totals()
	symbol := r.opts.Symbol
	code := r.opts.CurrencyCode
	if c := strings.TrimSpace(d.Currency); c != "" {
		code = c
	}

	items := make([]itemView, 0, len(d.Items))
	for _, it := range d.Items {
		if strings.TrimSpace(it.Description) == "" && strings.TrimSpace(it.Code) == "" && it.Amount().IsZero() {
			continue
		}
		items = append(items, itemView{
			Code:        it.Code,
			Description: it.Description,
			Quantity:    FormatQuantity(it.Quantity),
			Price:       FormatMoney(symbol, decimal.NewFromFloat(pricing.Coerce(it.UnitPrice))),
			Amount:      FormatMoney(symbol, it.RowAmount()),
		})
	}

	view := documentView{
		Company:      d.Company,
		Client:       d.Client,
		Number:       d.Invoice.Number,
		Date:         FormatDisplayDate(d.Invoice.Date),
		DueDate:      FormatDisplayDate(d.Invoice.DueDate),
		CurrencyCode: code,
		Items:        items,
		Subtotal:     FormatMoney(symbol, totals.Subtotal),
		Discount:     FormatMoney(symbol, totals.DiscountAmount),
		ShowDiscount: totals.DiscountAmount.IsPositive(),
		TaxRate:      FormatQuantity(d.TaxRate),
		TaxAmount:    FormatMoney(symbol, totals.TaxAmount),
		ShowTax:      totals.TaxAmount.IsPositive(),
		Total:        FormatMoney(symbol, totals.Total),
		Notes:        d.Notes,
		Terms:        d.Terms,
		Payment:      d.Invoice.PaymentMethods,
	}
	// Only data URLs of images are trusted as logo sources.
	if strings.HasPrefix(d.Company.Logo, "data:image/") {
		view.Logo = template.URL(d.Company.Logo)
	}
	return view
}
