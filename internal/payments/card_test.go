package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidLuhn(t *testing.T) {
	valid := []string{"4111111111111111", "5500005555555559", "378282246310005"}
	for _, n := range valid {
		assert.True(t, ValidLuhn(n), n)
	}
	invalid := []string{"4111111111111112", "1234", "", "41111111111111111111"}
	for _, n := range invalid {
		assert.False(t, ValidLuhn(n), n)
	}
}

func TestNormalizeCardNumber(t *testing.T) {
	assert.Equal(t, "4111111111111111", NormalizeCardNumber("4111-1111 1111-1111"))
	assert.Equal(t, "", NormalizeCardNumber("4111x1111"))
}

func TestPlanInstallments(t *testing.T) {
	single := PlanInstallments(decimal.RequireFromString("250.555"), 1)
	assert.Equal(t, 1, single.Installments)
	assert.Equal(t, "250.56", single.TotalAmount.StringFixed(2))
	assert.Equal(t, "250.56", single.InstallmentAmount.StringFixed(2))

	// 1000 * (1 + 0.0199*3) = 1059.70, /3 = 353.2333
	three := PlanInstallments(decimal.NewFromInt(1000), 3)
	assert.Equal(t, "1059.70", three.TotalAmount.StringFixed(2))
	assert.Equal(t, "353.23", three.InstallmentAmount.StringFixed(2))

	// 1200 * (1 + 0.0199*12) = 1486.56, /12 = 123.88
	twelve := PlanInstallments(decimal.NewFromInt(1200), 12)
	assert.Equal(t, "1486.56", twelve.TotalAmount.StringFixed(2))
	assert.Equal(t, "123.88", twelve.InstallmentAmount.StringFixed(2))
}
