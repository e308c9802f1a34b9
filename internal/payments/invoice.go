package payments

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"zamanyonet-admin/internal/resource"
)

type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "DRAFT"
	InvoiceIssued InvoiceStatus = "ISSUED"
	InvoicePaid   InvoiceStatus = "PAID"
	InvoiceVoid   InvoiceStatus = "VOID"
)

type InvoiceItem struct {
	Description string          `json:"description" binding:"required"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Invoice totals are always recomputed from the items.
type Invoice struct {
	resource.Base

	Number     string        `json:"number" binding:"required"`
	CustomerID string        `json:"customerId" binding:"required"`
	PaymentID  string        `json:"paymentId,omitempty"`
	Items      []InvoiceItem `json:"items" binding:"dive"`
	// TaxRate is a percentage, e.g. 20 for 20%.
	TaxRate  decimal.Decimal `json:"taxRate"`
	Currency string          `json:"currency"`
	Status   InvoiceStatus   `json:"status" binding:"required,oneof=DRAFT ISSUED PAID VOID"`

	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"taxAmount"`
	Total     decimal.Decimal `json:"total"`

	IssuedAt *time.Time `json:"issuedAt"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

var hundred = decimal.NewFromInt(100)

func Invoices() *resource.Definition[Invoice] {
	return &resource.Definition[Invoice]{
		Kind:       "invoices",
		Table:      "invoices",
		EntityType: "Invoice",
		Label:      "Invoice",
		Filters: map[string]string{
			"status":     "status",
			"customerId": "customerId",
			"paymentId":  "paymentId",
		},
		Prepare: prepareInvoice,
		UniqueKey: func(inv *Invoice) string {
			return strings.ToUpper(strings.TrimSpace(inv.Number))
		},
	}
}

func prepareInvoice(old, next *Invoice, now time.Time) error {
	next.Number = strings.TrimSpace(next.Number)
	if len(next.Items) == 0 {
		return resource.Invalid("items", "at least one item is required")
	}
	if next.TaxRate.IsNegative() || next.TaxRate.GreaterThan(hundred) {
		return resource.Invalid("taxRate", "must be between 0 and 100")
	}
	next.Currency = strings.ToUpper(strings.TrimSpace(next.Currency))
	if next.Currency == "" {
		next.Currency = DefaultCurrency
	}
	if !currencyCode.MatchString(next.Currency) {
		return resource.Invalid("currency", "must be a 3-letter ISO code")
	}

	subtotal := decimal.Zero
	for i, it := range next.Items {
		if it.Quantity < 1 {
			return resource.Invalid("items", "item %d: quantity must be at least 1", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return resource.Invalid("items", "item %d: unitPrice must not be negative", i+1)
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	next.Subtotal = subtotal.Round(2)
	next.TaxAmount = next.Subtotal.Mul(next.TaxRate).Div(hundred).Round(2)
	next.Total = next.Subtotal.Add(next.TaxAmount)

	switch {
	case old != nil && old.IssuedAt != nil:
		next.IssuedAt = old.IssuedAt
	case next.Status != InvoiceDraft:
		issued := now
		next.IssuedAt = &issued
	default:
		next.IssuedAt = nil
	}

	if next.DueDate != nil && next.IssuedAt != nil && next.DueDate.Before(*next.IssuedAt) {
		return resource.Invalid("dueDate", "must not be before the issue date")
	}
	return nil
}
