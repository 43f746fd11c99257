package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	PaymentTermsNet7         = "NET_7"
	PaymentTermsNet14        = "NET_14"
	PaymentTermsNet30        = "NET_30"
	PaymentTermsNet60        = "NET_60"
	PaymentTermsDueOnReceipt = "DUE_ON_RECEIPT"
)

type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ServiceProvider is the cleaning/maintenance company operating inside a tenant.
type ServiceProvider struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"not null;index" json:"tenant_id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Email     string    `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Customer struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ProviderID     uint           `gorm:"not null;uniqueIndex:ux_customers_provider_number,priority:1" json:"provider_id"`
	CustomerNumber string         `gorm:"type:varchar(32);not null;uniqueIndex:ux_customers_provider_number,priority:2" json:"customer_number"`
	Name           string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Email          string         `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email"`
	PaymentTerms   string         `gorm:"type:varchar(20);not null;default:'NET_14'" json:"payment_terms" validate:"omitempty,oneof=NET_7 NET_14 NET_30 NET_60 DUE_ON_RECEIPT"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Customer) Validate() error {
	v := validator.New()
	return v.Struct(c)
}

type Property struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CustomerID uint           `gorm:"not null;index" json:"customer_id"`
	Customer   *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Name       string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Address    string         `gorm:"type:varchar(255)" json:"address" validate:"max=255"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
