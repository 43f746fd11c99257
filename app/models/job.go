package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	JobKindCleaning    = "CLEANING"
	JobKindMaintenance = "MAINTENANCE"
)

const (
	JobStatusPending      = "PENDING"
	JobStatusQuotePending = "QUOTE_PENDING"
	JobStatusQuoteSent    = "QUOTE_SENT"
	JobStatusApproved     = "APPROVED"
	JobStatusScheduled    = "SCHEDULED"
	JobStatusInProgress   = "IN_PROGRESS"
	JobStatusCompleted    = "COMPLETED"
	JobStatusCancelled    = "CANCELLED"
)

// Job is a cleaning or maintenance work order on a property.
type Job struct {
	ID                   uint                        `gorm:"primaryKey" json:"id"`
	Kind                 string                      `gorm:"type:varchar(20);not null;index" json:"kind" validate:"oneof=CLEANING MAINTENANCE"`
	ProviderID           uint                        `gorm:"not null;index;uniqueIndex:ux_jobs_provider_quote,priority:1" json:"provider_id"`
	PropertyID           uint                        `gorm:"not null;index" json:"property_id" validate:"required"`
	Property             *Property                   `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	CustomerID           uint                        `gorm:"not null;index" json:"customer_id"`
	ContractID           *uint                       `gorm:"index" json:"contract_id,omitempty"`
	CalendarEntryID      *uint                       `gorm:"index" json:"calendar_entry_id,omitempty"`
	Title                string                      `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Description          string                      `gorm:"type:text" json:"description"`
	Status               string                      `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	AssignedWorkerID     *uint                       `gorm:"index:idx_jobs_worker_date,priority:1" json:"assigned_worker_id,omitempty"`
	AssignedContractorID *uint                       `gorm:"index" json:"assigned_contractor_id,omitempty"`
	ScheduledDate        *time.Time                  `gorm:"type:date;index:idx_jobs_worker_date,priority:2" json:"scheduled_date,omitempty"`
	StartTime            string                      `gorm:"type:varchar(5)" json:"start_time,omitempty"`
	EndTime              string                      `gorm:"type:varchar(5)" json:"end_time,omitempty"`
	QuoteNumber          *string                     `gorm:"type:varchar(32);uniqueIndex:ux_jobs_provider_quote,priority:2" json:"quote_number,omitempty"`
	QuotedPrice          decimal.NullDecimal         `gorm:"type:decimal(12,2)" json:"quoted_price"`
	Price                decimal.NullDecimal         `gorm:"type:decimal(12,2)" json:"price"`
	ActualCost           decimal.NullDecimal         `gorm:"type:decimal(12,2)" json:"actual_cost"`
	ActualMinutes        int                         `gorm:"not null;default:0" json:"actual_minutes"`
	CompletionNotes      string                      `gorm:"type:text" json:"completion_notes,omitempty"`
	BeforePhotos         datatypes.JSONSlice[string] `gorm:"type:json" json:"before_photos"`
	AfterPhotos          datatypes.JSONSlice[string] `gorm:"type:json" json:"after_photos"`
	StartedAt            *time.Time                  `json:"started_at,omitempty"`
	CompletedAt          *time.Time                  `json:"completed_at,omitempty"`
	CancelledAt          *time.Time                  `json:"cancelled_at,omitempty"`
	CancelReason         string                      `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	Version              int                         `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *Job) Validate() error {
	v := validator.New()
	return v.Struct(j)
}

// IsTerminal reports whether the job can no longer change state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusCancelled
}

// HasStarted reports whether work on the job ever began.
func (j *Job) HasStarted() bool {
	return j.StartedAt != nil || j.Status == JobStatusInProgress || j.Status == JobStatusCompleted
}

// IsAssignable reports whether a worker or contractor may be booked for the job.
// Cleaning jobs skip the quote flow and can be booked straight from PENDING.
func (j *Job) IsAssignable() bool {
	switch j.Status {
	case JobStatusApproved, JobStatusQuoteSent:
		return true
	case JobStatusPending:
		return j.Kind == JobKindCleaning
	default:
		return false
	}
}

// Snapshot returns a detached copy for change diffing.
func (j *Job) Snapshot() Job {
	c := *j
	c.Property = nil
	c.BeforePhotos = append(datatypes.JSONSlice[string](nil), j.BeforePhotos...)
	c.AfterPhotos = append(datatypes.JSONSlice[string](nil), j.AfterPhotos...)
	return c
}
