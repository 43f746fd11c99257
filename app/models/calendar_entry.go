package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/internal/pkg/timewindow"
)

// CalendarEntry is a guest stay turnover: the checkout of one stay and the
// check-in of the next one on the same property.
type CalendarEntry struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProviderID       uint      `gorm:"not null;index" json:"provider_id"`
	PropertyID       uint      `gorm:"not null;index" json:"property_id"`
	Property         *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	GuestName        string    `gorm:"type:varchar(150)" json:"guest_name"`
	Checkout         time.Time `gorm:"not null" json:"checkout"`
	NextCheckin      time.Time `gorm:"not null" json:"next_checkin"`
	CleanWindowStart time.Time `gorm:"not null;index" json:"clean_window_start"`
	CleanWindowEnd   time.Time `gorm:"not null" json:"clean_window_end"`
	CleaningJobID    *uint     `gorm:"index" json:"cleaning_job_id,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave derives the cleaning window from the stay timestamps. Whatever
// the caller put into the window fields is overwritten.
func (e *CalendarEntry) BeforeSave(tx *gorm.DB) error {
	w, err := timewindow.CleaningWindow(e.Checkout, e.NextCheckin)
	if err != nil {
		return err
	}
	e.CleanWindowStart = w.Start
	e.CleanWindowEnd = w.End
	return nil
}

// Window returns the stored cleaning window.
func (e *CalendarEntry) Window() timewindow.Window {
	return timewindow.Window{Start: e.CleanWindowStart, End: e.CleanWindowEnd}
}
