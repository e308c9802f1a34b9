package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains treats the range as half-open: [From, To).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Summary is the dashboard overview for one time range.
type Summary struct {
	Range TimeRange `json:"range"`

	Appointments AppointmentSummary `json:"appointments"`
	Payments     PaymentSummary     `json:"payments"`
}

type AppointmentSummary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// PaymentSummary totals payment amounts per currency bucket. Amounts in
// different currencies are not converted.
type PaymentSummary struct {
	Count    int             `json:"count"`
	Currency string          `json:"currency"`
	Paid     decimal.Decimal `json:"paid"`
	Pending  decimal.Decimal `json:"pending"`
	Refunded decimal.Decimal `json:"refunded"`
	// Other counts payments skipped because their currency differs.
	Other int `json:"otherCurrency"`
}
