package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PropFox/app/models"
)

// FeeLine is the fee of one linked property.
type FeeLine struct {
	PropertyID uint            `json:"property_id"`
	Fee        decimal.Decimal `json:"fee"`
	Missing    bool            `json:"missing,omitempty"`
}

// FeeBreakdown is the monthly fee of a contract and how it was made up.
type FeeBreakdown struct {
	PricingMode string          `json:"pricing_mode"`
	Total       decimal.Decimal `json:"total"`
	Lines       []FeeLine       `json:"lines,omitempty"`
	// MissingFees lists active PER_PROPERTY links without a fee. They count as 0.
	MissingFees []uint `json:"missing_fees,omitempty"`
}

// IsDueToday reports whether an ACTIVE contract bills on today's day of month.
// There is no month-end clamp: billing day 31 is skipped in shorter months.
func IsDueToday(c *models.Contract, today time.Time) bool {
	return c.Status == models.ContractStatusActive && c.BillingDay == today.Day()
}

// ComputeMonthlyFee returns the flat fee, or the sum of the fees of the active
// linked properties for PER_PROPERTY contracts.
func ComputeMonthlyFee(c *models.Contract) FeeBreakdown {
	b := FeeBreakdown{PricingMode: c.PricingMode, Total: decimal.Zero}
	if c.PricingMode != models.PricingModePerProperty {
		b.Total = c.MonthlyFee
		return b
	}

	for _, link := range c.ActiveProperties() {
		line := FeeLine{PropertyID: link.PropertyID, Fee: decimal.Zero}
		if link.Fee.Valid {
			line.Fee = link.Fee.Decimal
		} else {
			line.Missing = true
			b.MissingFees = append(b.MissingFees, link.PropertyID)
		}
		b.Lines = append(b.Lines, line)
		b.Total = b.Total.Add(line.Fee)
	}
	return b
}

// PaymentTermsDays maps a customer's payment terms to days until due.
func PaymentTermsDays(terms string, fallback int) int {
	switch terms {
	case models.PaymentTermsNet7:
		return 7
	case models.PaymentTermsNet14:
		return 14
	case models.PaymentTermsNet30:
		return 30
	case models.PaymentTermsNet60:
		return 60
	case models.PaymentTermsDueOnReceipt:
		return 0
	default:
		return fallback
	}
}

// Totals holds the derived money fields of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals applies the tax rate to base plus additional charges. The tax
// is rounded to cents before it is added.
func ComputeTotals(base, additional, taxPercentage decimal.Decimal) Totals {
	subtotal := base.Add(additional).Round(2)
	tax := subtotal.Mul(taxPercentage).Div(decimal.NewFromInt(100)).Round(2)
	return Totals{Subtotal: subtotal, TaxAmount: tax, Total: subtotal.Add(tax)}
}
