package draft_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/pricing"
)

func TestNewDefaults(t *testing.T) {
	now := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	d := draft.New(now)

	require.NotEqual(t, uuid.Nil, d.ID)
	require.Regexp(t, regexp.MustCompile(`^INV-20240305-\d{3}$`), d.Invoice.Number)
	require.Equal(t, "2024-03-05", d.Invoice.Date)
	require.Equal(t, "2024-04-04", d.Invoice.DueDate)
	require.Equal(t, "Bank transfer, Credit card, Cash", d.Invoice.PaymentMethods)
	require.Equal(t, "Thank you for your business!", d.Notes)
	require.Len(t, d.Items, 1)
	require.Equal(t, 1.0, d.Items[0].Quantity)
}

func TestRemoveLastItemClearsRow(t *testing.T) {
	d := draft.New(time.Now())
	require.NoError(t, d.UpdateItem(0, pricing.LineItem{Code: "A1", Description: "Logo design", Quantity: 3, UnitPrice: 120}))

	require.NoError(t, d.RemoveItem(0))
	require.Len(t, d.Items, 1)
	require.Equal(t, pricing.LineItem{Quantity: 1}, d.Items[0])
}

func TestRemoveItemKeepsOrder(t *testing.T) {
	d := draft.New(time.Now())
	d.Items = nil
	d.AddItem(pricing.LineItem{Description: "a"})
	d.AddItem(pricing.LineItem{Description: "b"})
	d.AddItem(pricing.LineItem{Description: "c"})

	require.NoError(t, d.RemoveItem(1))
	require.Len(t, d.Items, 2)
	require.Equal(t, "a", d.Items[0].Description)
	require.Equal(t, "c", d.Items[1].Description)

	err := d.RemoveItem(5)
	require.True(t, errors.Is(err, draft.ErrItemIndex))
}

func TestAddItemCoercesNegatives(t *testing.T) {
	d := draft.New(time.Now())
	idx := d.AddItem(pricing.LineItem{Description: "refund", Quantity: -1, UnitPrice: -20})
	require.Equal(t, 1, idx)
	require.Equal(t, 0.0, d.Items[idx].Quantity)
	require.Equal(t, 0.0, d.Items[idx].UnitPrice)
}

func TestDraftTotals(t *testing.T) {
	d := draft.New(time.Now())
	d.Items = []pricing.LineItem{{Quantity: 2, UnitPrice: 10}, {Quantity: 1, UnitPrice: 5}}
	d.Discount = pricing.DiscountSpec{Value: 3, Kind: pricing.DiscountFixed}
	d.TaxRate = 10

	totals := d.Totals()
	require.Equal(t, "24.20", totals.Total.StringFixed(2))
}

func TestValidateForExport(t *testing.T) {
	d := draft.New(time.Now())
	d.Invoice.Number = ""

	err := d.ValidateForExport(draft.NewValidator())
	require.Error(t, err)
	require.True(t, errors.Is(err, draft.ErrIncomplete))

	var verr *draft.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []string{"Company Name", "Client Name", "Invoice Number", "Item Description"}, verr.Missing)
	require.Contains(t, err.Error(), "please fill in: Company Name")

	d.Company.Name = "Acme Studio"
	d.Client.Name = "Globex"
	d.Invoice.Number = "INV-1"
	d.Items[0].Description = "Consulting"
	require.NoError(t, d.ValidateForExport(nil))

	d.Client.Email = "not-an-email"
	d.Invoice.DueDate = "05/03/2024"
	err = d.ValidateForExport(nil)
	require.ErrorAs(t, err, &verr)
	require.Empty(t, verr.Missing)
	require.ElementsMatch(t, []string{"Client Email", "Due Date"}, verr.Invalid)
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := draft.New(time.Now())
	d.Company.Name = "Acme"
	d.Invoice.Number = "INV 2024/07"

	var buf bytes.Buffer
	require.NoError(t, draft.Export(&buf, d))
	require.Contains(t, buf.String(), "\n  \"company\"")

	imported, err := draft.Import(&buf)
	require.NoError(t, err)
	require.Equal(t, d.ID, imported.ID)
	require.Equal(t, "Acme", imported.Company.Name)
	require.Equal(t, "invoice_INV_2024_07.json", draft.SnapshotFilename(imported))
	require.Equal(t, "invoice_draft.json", draft.SnapshotFilename(&draft.Draft{}))
}

func TestImportRejectsInvalidJSON(t *testing.T) {
	_, err := draft.Import(strings.NewReader("{not json"))
	require.True(t, errors.Is(err, draft.ErrInvalidSnapshot))
}

func TestImportAddsMissingRowAndID(t *testing.T) {
	d, err := draft.Import(strings.NewReader(`{"company":{"name":"Acme"},"items":[],"tax":-3}`))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, d.ID)
	require.Len(t, d.Items, 1)
	require.Equal(t, 0.0, d.TaxRate)
	require.Equal(t, pricing.DiscountFixed, d.Discount.Kind)
}

func TestImportAcceptsFormStrings(t *testing.T) {
	d, err := draft.Import(strings.NewReader(`{"company":{"name":"Acme"},
		"items":[{"description":"Design","quantity":"2","price":"12.5"},{"description":"Misc","quantity":"","price":"abc"}],
		"discount":{"value":"5","kind":"fixed"},"tax":"10"}`))
	require.NoError(t, err)
	require.Equal(t, 2.0, d.Items[0].Quantity)
	require.Equal(t, 12.5, d.Items[0].UnitPrice)
	require.Zero(t, d.Items[1].Quantity)
	require.Zero(t, d.Items[1].UnitPrice)
	require.Equal(t, 5.0, d.Discount.Value)
	require.Equal(t, 10.0, d.TaxRate)
	require.Equal(t, "Acme", d.Company.Name)
	require.Equal(t, "22.00", d.Totals().Total.StringFixed(2))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store, err := draft.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))

	first := draft.New(time.Now())
	first.Client.Name = "Globex"
	require.NoError(t, store.Save(ctx, first))
	require.False(t, first.UpdatedAt.IsZero())

	loaded, err := store.Load(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "Globex", loaded.Client.Name)
	require.Equal(t, first.Invoice.Number, loaded.Invoice.Number)

	second := draft.New(time.Now())
	require.NoError(t, store.Save(ctx, second))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, store.Delete(ctx, first.ID))
	_, err = store.Load(ctx, first.ID)
	require.True(t, errors.Is(err, draft.ErrNotFound))
	require.True(t, errors.Is(store.Delete(ctx, first.ID), draft.ErrNotFound))
}
