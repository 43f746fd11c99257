package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	WorkerTypeCleaner    = "CLEANER"
	WorkerTypeTechnician = "TECHNICIAN"
	WorkerTypeGeneral    = "GENERAL"
)

// Worker is an internal employee of a service provider.
type Worker struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ProviderID uint           `gorm:"not null;index" json:"provider_id"`
	UserID     *uint          `gorm:"index" json:"user_id,omitempty"`
	Name       string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Type       string         `gorm:"type:varchar(20);not null;default:'GENERAL'" json:"type" validate:"oneof=CLEANER TECHNICIAN GENERAL"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (w *Worker) Validate() error {
	v := validator.New()
	return v.Struct(w)
}

// CanHandle reports whether the worker's trade fits the job kind.
func (w *Worker) CanHandle(jobKind string) bool {
	switch w.Type {
	case WorkerTypeGeneral:
		return true
	case WorkerTypeCleaner:
		return jobKind == JobKindCleaning
	case WorkerTypeTechnician:
		return jobKind == JobKindMaintenance
	default:
		return false
	}
}

// Contractor is an external, self-scheduling company.
type Contractor struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProviderID  uint           `gorm:"not null;index" json:"provider_id"`
	UserID      *uint          `gorm:"index" json:"user_id,omitempty"`
	CompanyName string         `gorm:"type:varchar(150);not null" json:"company_name" validate:"required,max=150"`
	Email       string         `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
