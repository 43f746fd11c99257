package models

import "time"

const (
	NotificationJobScheduled = "job_scheduled"
	NotificationJobCompleted = "job_completed"
	NotificationQuoteSent    = "quote_sent"
	NotificationInvoice      = "invoice"
)

// Notification is a customer-facing message. Delivery happens elsewhere;
// this table is the hand-off point.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CustomerID  uint      `gorm:"index" json:"customer_id"`
	Type        string    `gorm:"type:varchar(50)" json:"type" validate:"oneof=job_scheduled job_completed quote_sent invoice"`
	Title       string    `gorm:"type:varchar(200)" json:"title"`
	Content     string    `gorm:"type:text" json:"content"`
	IsRead      bool      `gorm:"default:false" json:"is_read"`
	ReferenceID uint      `json:"reference_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
