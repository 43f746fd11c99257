package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PricingModeFlatMonthly = "FLAT_MONTHLY"
	PricingModePerProperty = "PER_PROPERTY"
)

const (
	ContractStatusActive    = "ACTIVE"
	ContractStatusPaused    = "PAUSED"
	ContractStatusCancelled = "CANCELLED"
)

// Contract is a recurring cleaning agreement between a provider and a customer.
type Contract struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	ProviderID     uint               `gorm:"not null;index:idx_contracts_provider_status,priority:1;uniqueIndex:ux_contracts_provider_number,priority:1" json:"provider_id"`
	CustomerID     uint               `gorm:"not null;index" json:"customer_id" validate:"required"`
	Customer       *Customer          `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	ContractNumber string             `gorm:"type:varchar(32);not null;uniqueIndex:ux_contracts_provider_number,priority:2" json:"contract_number"`
	PricingMode    string             `gorm:"type:varchar(20);not null;default:'FLAT_MONTHLY'" json:"pricing_mode" validate:"oneof=FLAT_MONTHLY PER_PROPERTY"`
	MonthlyFee     decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0" json:"monthly_fee"`
	BillingDay     int                `gorm:"not null;index" json:"billing_day" validate:"min=1,max=31"`
	Status         string             `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_contracts_provider_status,priority:2" json:"status" validate:"oneof=ACTIVE PAUSED CANCELLED"`
	StartDate      time.Time          `gorm:"type:date;not null" json:"start_date"`
	EndDate        *time.Time         `gorm:"type:date;default:null" json:"end_date,omitempty"`
	Notes          string             `gorm:"type:text" json:"notes"`
	Properties     []ContractProperty `gorm:"foreignKey:ContractID" json:"properties,omitempty"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt     `gorm:"index" json:"-"`
}

func (c *Contract) Validate() error {
	v := validator.New()
	return v.Struct(c)
}

// ActiveProperties returns the linked properties that are still billed.
func (c *Contract) ActiveProperties() []ContractProperty {
	active := make([]ContractProperty, 0, len(c.Properties))
	for _, p := range c.Properties {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active
}

// ContractProperty links a property to a contract. Rows are never hard-deleted;
// unlinking flips IsActive so historical invoices keep their reference.
type ContractProperty struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	ContractID uint                `gorm:"not null;index:ux_contract_properties_contract_property,unique,priority:1" json:"contract_id"`
	PropertyID uint                `gorm:"not null;index:ux_contract_properties_contract_property,unique,priority:2;index" json:"property_id"`
	Property   *Property           `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Fee        decimal.NullDecimal `gorm:"type:decimal(12,2);default:null" json:"fee"`
	IsActive   bool                `gorm:"default:true" json:"is_active"`
	LinkedAt   time.Time           `gorm:"not null" json:"linked_at"`
	UnlinkedAt *time.Time          `gorm:"default:null" json:"unlinked_at,omitempty"`
	CreatedAt  time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}
