package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceKindCleaning    = "CLEANING"
	InvoiceKindMaintenance = "MAINTENANCE"
)

const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
)

// Invoice is either a contract (cleaning) invoice for one billing period or a
// maintenance invoice for one completed job. ContractID is set on cleaning
// invoices only; a maintenance invoice reaches its contract through the job.
type Invoice struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Kind              string          `gorm:"type:varchar(20);not null;index" json:"kind"`
	InvoiceNumber     string          `gorm:"type:varchar(32);not null;uniqueIndex:ux_invoices_provider_number,priority:2" json:"invoice_number"`
	ProviderID        uint            `gorm:"not null;uniqueIndex:ux_invoices_provider_number,priority:1" json:"provider_id"`
	CustomerID        uint            `gorm:"not null;index" json:"customer_id"`
	ContractID        *uint           `gorm:"index:ux_invoices_contract_period,unique,priority:1" json:"contract_id,omitempty"`
	JobID             *uint           `gorm:"uniqueIndex" json:"job_id,omitempty"`
	PeriodStart       time.Time       `gorm:"type:date;not null;index:ux_invoices_contract_period,unique,priority:2" json:"period_start"`
	PeriodEnd         time.Time       `gorm:"type:date;not null;index:ux_invoices_contract_period,unique,priority:3" json:"period_end"`
	CompletedJobCount int64           `gorm:"not null;default:0" json:"completed_job_count"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	AdditionalCharges decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"additional_charges"`
	TaxPercentage     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_percentage"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	Total             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Status            string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	DueDate           time.Time       `gorm:"type:date;not null" json:"due_date"`
	PaidAt            *time.Time      `gorm:"default:null" json:"paid_at,omitempty"`
	PaymentMethod     string          `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	PaymentReference  string          `gorm:"type:varchar(191)" json:"payment_reference,omitempty"`
	Notes             string          `gorm:"type:text" json:"notes,omitempty"`
	ArchiveObjectKey  string          `gorm:"type:varchar(255)" json:"archive_object_key,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}
