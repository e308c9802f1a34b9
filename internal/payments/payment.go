package payments

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"zamanyonet-admin/internal/resource"
)

func init() {
	// Money goes over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Method string

const (
	MethodCash         Method = "CASH"
	MethodCreditCard   Method = "CREDIT_CARD"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodOnline       Method = "ONLINE"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
	StatusCancelled Status = "CANCELLED"
)

// Payment is an appointment payment. No gateway is charged: card details
// are recorded, not processed.
type Payment struct {
	resource.Base

	AppointmentID string          `json:"appointmentId" binding:"required"`
	CustomerID    string          `json:"customerId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        Method          `json:"method" binding:"required,oneof=CASH CREDIT_CARD BANK_TRANSFER ONLINE"`
	Status        Status          `json:"status" binding:"required,oneof=PENDING PAID FAILED REFUNDED CANCELLED"`
	// PaidAt is set by the server on the transition into PAID.
	PaidAt *time.Time `json:"paidAt"`

	Installments      int             `json:"installments"`
	InstallmentAmount decimal.Decimal `json:"installmentAmount"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`

	// CardNumber is accepted on input only and never stored.
	CardNumber string `json:"cardNumber,omitempty"`
	CardHolder string `json:"cardHolder,omitempty"`
	CardLast4  string `json:"cardLast4,omitempty"`

	TransactionRef string `json:"transactionRef,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

const DefaultCurrency = "TRY"

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

func Payments() *resource.Definition[Payment] {
	return &resource.Definition[Payment]{
		Kind:       "payments",
		Table:      "payments",
		EntityType: "AppointmentPayment",
		Label:      "Payment",
		Filters: map[string]string{
			"status":        "status",
			"method":        "method",
			"customerId":    "customerId",
			"appointmentId": "appointmentId",
		},
		Prepare: preparePayment,
	}
}

func preparePayment(old, next *Payment, now time.Time) error {
	if !next.Amount.IsPositive() {
		return resource.Invalid("amount", "must be greater than zero")
	}
	next.Currency = strings.ToUpper(strings.TrimSpace(next.Currency))
	if next.Currency == "" {
		next.Currency = DefaultCurrency
	}
	if !currencyCode.MatchString(next.Currency) {
		return resource.Invalid("currency", "must be a 3-letter ISO code")
	}

	if err := prepareCard(old, next); err != nil {
		return err
	}

	switch {
	case next.Status != StatusPaid:
		next.PaidAt = nil
		if old != nil {
			next.PaidAt = old.PaidAt
		}
	case old != nil && old.Status == StatusPaid:
		next.PaidAt = old.PaidAt
	default:
		paid := now
		next.PaidAt = &paid
	}
	return nil
}

func prepareCard(old, next *Payment) error {
	raw := next.CardNumber
	next.CardNumber = ""

	if next.Installments == 0 {
		next.Installments = MinInstallments
	}
	if next.Installments < MinInstallments || next.Installments > MaxInstallments {
		return resource.Invalid("installments", "must be between %d and %d", MinInstallments, MaxInstallments)
	}

	if next.Method != MethodCreditCard {
		if raw != "" {
			return resource.Invalid("cardNumber", "only allowed for CREDIT_CARD payments")
		}
		if next.Installments > 1 {
			return resource.Invalid("installments", "only allowed for CREDIT_CARD payments")
		}
		next.CardHolder = ""
		next.CardLast4 = ""
	} else {
		switch {
		case raw != "":
			digits := NormalizeCardNumber(raw)
			if !ValidLuhn(digits) {
				return resource.Invalid("cardNumber", "is not a valid card number")
			}
			next.CardLast4 = digits[len(digits)-4:]
		case old != nil && old.CardLast4 != "":
			next.CardLast4 = old.CardLast4
		default:
			return resource.Invalid("cardNumber", "is required for CREDIT_CARD payments")
		}
		if strings.TrimSpace(next.CardHolder) == "" {
			return resource.Invalid("cardHolder", "is required for CREDIT_CARD payments")
		}
	}

	plan := PlanInstallments(next.Amount, next.Installments)
	next.Installments = plan.Installments
	next.TotalAmount = plan.TotalAmount
	next.InstallmentAmount = plan.InstallmentAmount
	return nil
}
