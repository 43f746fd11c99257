package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubjectKind tags which entity a history entry belongs to.
type SubjectKind string

const (
	SubjectProperty SubjectKind = "PROPERTY"
	SubjectJob      SubjectKind = "JOB"
	SubjectWorker   SubjectKind = "WORKER"
)

const (
	ChangeCreated           = "CREATED"
	ChangeUpdated           = "UPDATED"
	ChangeStatusChanged     = "STATUS_CHANGED"
	ChangeWorkerAssigned    = "WORKER_ASSIGNED"
	ChangeWorkerUnassigned  = "WORKER_UNASSIGNED"
	ChangeWorkerChanged     = "WORKER_CHANGED"
	ChangeScheduleChanged   = "SCHEDULE_CHANGED"
	ChangeNotesUpdated      = "NOTES_UPDATED"
	ChangePriceChanged      = "PRICE_CHANGED"
	ChangePhotosAdded       = "PHOTOS_ADDED"
	ChangeContractLinked    = "CONTRACT_LINKED"
	ChangeContractUnlinked  = "CONTRACT_UNLINKED"
	ChangeFeeChanged        = "FEE_CHANGED"
	ChangeInvoiceGenerated  = "INVOICE_GENERATED"
	ChangeJobAssigned       = "JOB_ASSIGNED"
	ChangeJobUnassigned     = "JOB_UNASSIGNED"
	ChangeCleaningScheduled = "CLEANING_SCHEDULED"
)

// HistoryEntry is one immutable line of the audit trail.
type HistoryEntry struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SubjectKind SubjectKind    `gorm:"type:varchar(20);not null;index:idx_history_subject,priority:1" json:"subject_kind"`
	SubjectID   uint           `gorm:"not null;index:idx_history_subject,priority:2" json:"subject_id"`
	ChangeType  string         `gorm:"type:varchar(40);not null" json:"change_type"`
	FieldName   *string        `gorm:"type:varchar(64)" json:"field_name,omitempty"`
	OldValue    *string        `gorm:"type:text" json:"old_value,omitempty"`
	NewValue    *string        `gorm:"type:text" json:"new_value,omitempty"`
	Description string         `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`
	ActorID     *uint          `gorm:"index" json:"actor_id,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (HistoryEntry) TableName() string {
	return "history_entries"
}
