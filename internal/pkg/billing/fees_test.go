package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/PropFox/app/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fee(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func TestComputeMonthlyFee(t *testing.T) {
	t.Run("flat monthly ignores linked properties", func(t *testing.T) {
		c := &models.Contract{
			PricingMode: models.PricingModeFlatMonthly,
			MonthlyFee:  dec("200"),
			Properties:  []models.ContractProperty{{PropertyID: 1, Fee: fee("50"), IsActive: true}},
		}
		b := ComputeMonthlyFee(c)
		assert.True(t, b.Total.Equal(dec("200")))
		assert.Empty(t, b.Lines)
	})

	t.Run("per property sums active links only", func(t *testing.T) {
		c := &models.Contract{
			PricingMode: models.PricingModePerProperty,
			MonthlyFee:  dec("500"),
			Properties: []models.ContractProperty{
				{PropertyID: 1, Fee: fee("50"), IsActive: true},
				{PropertyID: 2, Fee: fee("75"), IsActive: true},
				{PropertyID: 3, Fee: fee("999"), IsActive: false},
			},
		}
		b := ComputeMonthlyFee(c)
		assert.True(t, b.Total.Equal(dec("125")), "got %s", b.Total)
		assert.Len(t, b.Lines, 2)
		assert.Empty(t, b.MissingFees)
	})

	t.Run("missing fee counts as zero and is reported", func(t *testing.T) {
		c := &models.Contract{
			PricingMode: models.PricingModePerProperty,
			Properties: []models.ContractProperty{
				{PropertyID: 1, Fee: fee("40"), IsActive: true},
				{PropertyID: 2, IsActive: true},
			},
		}
		b := ComputeMonthlyFee(c)
		assert.True(t, b.Total.Equal(dec("40")))
		assert.Equal(t, []uint{2}, b.MissingFees)
		assert.True(t, b.Lines[1].Missing)
	})

	t.Run("no active links", func(t *testing.T) {
		b := ComputeMonthlyFee(&models.Contract{PricingMode: models.PricingModePerProperty})
		assert.True(t, b.Total.IsZero())
	})
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		base, additional, tax       string
		subtotal, taxAmount, total string
	}{
		{"100", "0", "20", "100", "20", "120"},
		{"200", "0", "20", "200", "40", "240"},
		{"99.99", "0", "20", "99.99", "20", "119.99"},
		{"125", "15.50", "20", "140.5", "28.1", "168.6"},
		{"10", "0", "0", "10", "0", "10"},
	}
	for _, tt := range tests {
		got := ComputeTotals(dec(tt.base), dec(tt.additional), dec(tt.tax))
		assert.True(t, got.Subtotal.Equal(dec(tt.subtotal)), "subtotal %s+%s: %s", tt.base, tt.additional, got.Subtotal)
		assert.True(t, got.TaxAmount.Equal(dec(tt.taxAmount)), "tax %s+%s: %s", tt.base, tt.additional, got.TaxAmount)
		assert.True(t, got.Total.Equal(dec(tt.total)), "total %s+%s: %s", tt.base, tt.additional, got.Total)
	}
}

func TestPaymentTermsDays(t *testing.T) {
	assert.Equal(t, 7, PaymentTermsDays(models.PaymentTermsNet7, 14))
	assert.Equal(t, 14, PaymentTermsDays(models.PaymentTermsNet14, 30))
	assert.Equal(t, 30, PaymentTermsDays(models.PaymentTermsNet30, 14))
	assert.Equal(t, 60, PaymentTermsDays(models.PaymentTermsNet60, 14))
	assert.Equal(t, 0, PaymentTermsDays(models.PaymentTermsDueOnReceipt, 14))
	assert.Equal(t, 21, PaymentTermsDays("NET_21", 21))
}

func TestIsDueToday(t *testing.T) {
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	feb28 := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)

	c := &models.Contract{Status: models.ContractStatusActive, BillingDay: 31}
	assert.True(t, IsDueToday(c, jan31))
	assert.False(t, IsDueToday(c, feb28))

	c.Status = models.ContractStatusPaused
	assert.False(t, IsDueToday(c, jan31))
}
