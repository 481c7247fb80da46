package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-invoice/internal/pricing"
)

// DateLayout is the wire format for invoice and due dates.
const DateLayout = "2006-01-02"

const (
	defaultDueDays        = 30
	defaultPaymentMethods = "Bank transfer, Credit card, Cash"
	defaultNotes          = "Thank you for your business!"
)

var (
	// ErrNotFound is returned when a draft does not exist in the store.
	ErrNotFound = errors.New("draft not found")
	// ErrItemIndex is returned for item operations outside the current rows.
	ErrItemIndex = errors.New("item index out of range")
)

// Company is the issuer block of the invoice.
type Company struct {
	Name    string `json:"name" label:"Company Name" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Mobile  string `json:"mobile"`
	Email   string `json:"email" label:"Company Email" validate:"omitempty,email"`
	Website string `json:"website"`
	TaxID   string `json:"trn"`
	// Logo holds a data URL of the uploaded image.
	Logo string `json:"logo,omitempty" label:"Logo" validate:"omitempty,datauri"`
}

// Client is the bill-to block of the invoice.
type Client struct {
	Name    string `json:"name" label:"Client Name" validate:"required"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Email   string `json:"email" label:"Client Email" validate:"omitempty,email"`
	Address string `json:"address"`
}

// Details carries invoice numbering and dates.
type Details struct {
	Number         string `json:"number" label:"Invoice Number" validate:"required"`
	Date           string `json:"date" label:"Invoice Date" validate:"omitempty,datetime=2006-01-02"`
	DueDate        string `json:"dueDate" label:"Due Date" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethods string `json:"paymentMethods"`
}

// Draft is the full in-progress invoice. It is persisted as a single snapshot.
type Draft struct {
	ID        uuid.UUID            `json:"id"`
	Company   Company              `json:"company"`
	Client    Client               `json:"client"`
	Invoice   Details              `json:"invoice"`
	Items     []pricing.LineItem   `json:"items"`
	Discount  pricing.DiscountSpec `json:"discount"`
	TaxRate   float64              `json:"tax"`
	Currency  string               `json:"currency,omitempty"`
	Notes     string               `json:"notes"`
	Terms     string               `json:"terms"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// UnmarshalJSON accepts the tax rate as a number or a form string.
func (d *Draft) UnmarshalJSON(data []byte) error {
	type fields Draft
	aux := struct {
		*fields
		TaxRate pricing.Amount `json:"tax"`
	}{fields: (*fields)(d), TaxRate: pricing.Amount(d.TaxRate)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.TaxRate = float64(aux.TaxRate)
	return nil
}

// New returns a draft populated with the defaults a fresh form starts with.
func New(now time.Time) *Draft {
	return &Draft{
		ID: uuid.New(),
		Invoice: Details{
			Number:         NewNumber(now),
			Date:           now.Format(DateLayout),
			DueDate:        now.AddDate(0, 0, defaultDueDays).Format(DateLayout),
			PaymentMethods: defaultPaymentMethods,
		},
		Items:    []pricing.LineItem{emptyItem()},
		Discount: pricing.DiscountSpec{Kind: pricing.DiscountFixed},
		Notes:    defaultNotes,
	}
}

// NewNumber generates an invoice number of the form INV-YYYYMMDD-NNN. Uniqueness is not guaranteed.
func NewNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%03d", now.Format("20060102"), rand.IntN(1000))
}

// Totals computes the derived figures for the draft.
func (d *Draft) Totals() pricing.Totals {
	return pricing.ComputeTotals(d.Items, d.Discount, d.TaxRate)
}

// AddItem appends a row and returns its index.
func (d *Draft) AddItem(item pricing.LineItem) int {
	d.Items = append(d.Items, normalizeItem(item))
	return len(d.Items) - 1
}

// UpdateItem replaces the row at index i.
func (d *Draft) UpdateItem(i int, item pricing.LineItem) error {
	if i < 0 || i >= len(d.Items) {
		return fmt.Errorf("%w: %d", ErrItemIndex, i)
	}
	d.Items[i] = normalizeItem(item)
	return nil
}

// RemoveItem deletes the row at index i. The last remaining row is cleared instead of removed.
func (d *Draft) RemoveItem(i int) error {
	if i < 0 || i >= len(d.Items) {
		return fmt.Errorf("%w: %d", ErrItemIndex, i)
	}
	if len(d.Items) == 1 {
		d.Items[0] = emptyItem()
		return nil
	}
	d.Items = append(d.Items[:i], d.Items[i+1:]...)
	return nil
}

// Normalize coerces numeric fields to valid non-negative values and guarantees at least one row.
func (d *Draft) Normalize() {
	for i := range d.Items {
		d.Items[i] = normalizeItem(d.Items[i])
	}
	if len(d.Items) == 0 {
		d.Items = []pricing.LineItem{emptyItem()}
	}
	d.Discount.Value = pricing.Coerce(d.Discount.Value)
	d.Discount.Kind = pricing.ParseDiscountKind(string(d.Discount.Kind))
	d.TaxRate = pricing.Coerce(d.TaxRate)
	d.Invoice.Number = strings.TrimSpace(d.Invoice.Number)
}

// HasDescribedItem reports whether at least one row carries a description.
func (d *Draft) HasDescribedItem() bool {
	for _, it := range d.Items {
		if strings.TrimSpace(it.Description) != "" {
			return true
		}
	}
	return false
}

func normalizeItem(item pricing.LineItem) pricing.LineItem {
	item.Quantity = pricing.Coerce(item.Quantity)
	item.UnitPrice = pricing.Coerce(item.UnitPrice)
	return item
}

func emptyItem() pricing.LineItem {
	return pricing.LineItem{Quantity: 1}
}
