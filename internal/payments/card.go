package payments

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MinInstallments = 1
	MaxInstallments = 12
)

// MonthlyInterestRate applies to every installment plan longer than one month.
var MonthlyInterestRate = decimal.RequireFromString("0.0199")

// NormalizeCardNumber strips spaces and dashes. It returns "" when anything
// other than digits remains.
func NormalizeCardNumber(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == ' ' || r == '-':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return ""
		}
	}
	return b.String()
}

// ValidLuhn reports whether digits passes the Luhn checksum and has a
// plausible card length.
func ValidLuhn(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// InstallmentPlan is the price of paying amount over n months.
type InstallmentPlan struct {
	Installments      int
	TotalAmount       decimal.Decimal
	InstallmentAmount decimal.Decimal
}

// PlanInstallments applies simple monthly interest for n > 1:
// total = amount * (1 + rate*n), per = total / n, both to 2 decimals.
func PlanInstallments(amount decimal.Decimal, n int) InstallmentPlan {
	if n <= 1 {
		total := amount.Round(2)
		return InstallmentPlan{Installments: 1, TotalAmount: total, InstallmentAmount: total}
	}
	months := decimal.NewFromInt(int64(n))
	factor := decimal.NewFromInt(1).Add(MonthlyInterestRate.Mul(months))
	total := amount.Mul(factor).Round(2)
	return InstallmentPlan{
		Installments:      n,
		TotalAmount:       total,
		InstallmentAmount: total.Div(months).Round(2),
	}
}
