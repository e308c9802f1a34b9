package payments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zamanyonet-admin/internal/resource"
)

func draftInvoice() Invoice {
	return Invoice{
		Number:     "INV-0001",
		CustomerID: "cus-1",
		Items: []InvoiceItem{
			{Description: "Consultation", Quantity: 2, UnitPrice: decimal.RequireFromString("150.00")},
			{Description: "Follow-up", Quantity: 1, UnitPrice: decimal.RequireFromString("99.99")},
		},
		TaxRate: decimal.NewFromInt(20),
		Status:  InvoiceDraft,
	}
}

func TestPrepareInvoice_ComputesTotals(t *testing.T) {
	inv := draftInvoice()
	inv.Subtotal = decimal.NewFromInt(1) // client value is ignored
	require.NoError(t, prepareInvoice(nil, &inv, time.Now()))

	assert.Equal(t, "399.99", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "80.00", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "479.99", inv.Total.StringFixed(2))
	assert.Equal(t, DefaultCurrency, inv.Currency)
	assert.Nil(t, inv.IssuedAt)
}

func TestPrepareInvoice_IssuedAtSetOnce(t *testing.T) {
	t1 := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)

	old := draftInvoice()
	require.NoError(t, prepareInvoice(nil, &old, t1))

	issued := old
	issued.Status = InvoiceIssued
	require.NoError(t, prepareInvoice(&old, &issued, t1))
	require.NotNil(t, issued.IssuedAt)
	assert.Equal(t, t1, *issued.IssuedAt)

	paid := issued
	paid.Status = InvoicePaid
	paid.IssuedAt = nil
	require.NoError(t, prepareInvoice(&issued, &paid, t2))
	require.NotNil(t, paid.IssuedAt)
	assert.Equal(t, t1, *paid.IssuedAt)
}

func TestPrepareInvoice_Rejects(t *testing.T) {
	noItems := draftInvoice()
	noItems.Items = nil
	assert.True(t, resource.IsValidation(prepareInvoice(nil, &noItems, time.Now())))

	badQty := draftInvoice()
	badQty.Items[0].Quantity = 0
	assert.True(t, resource.IsValidation(prepareInvoice(nil, &badQty, time.Now())))

	badTax := draftInvoice()
	badTax.TaxRate = decimal.NewFromInt(120)
	assert.True(t, resource.IsValidation(prepareInvoice(nil, &badTax, time.Now())))
}
