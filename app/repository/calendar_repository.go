package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropFox/app/models"
)

// calendarRepository implements the CalendarRepository interface
type calendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) CalendarRepository {
	return &calendarRepository{db: db}
}

// Save inserts or updates the entry; the BeforeSave hook derives the window
func (r *calendarRepository) Save(ctx context.Context, entry *models.CalendarEntry) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(entry).Error
}

func (r *calendarRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.CalendarEntry, error) {
	var e models.CalendarEntry
	err := r.db.WithContext(ctx).Where("id = ? AND provider_id = ?", id, providerID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *calendarRepository) FindByCheckout(ctx context.Context, propertyID uint, checkout time.Time) (*models.CalendarEntry, error) {
	var e models.CalendarEntry
	err := r.db.WithContext(ctx).Where("property_id = ? AND checkout = ?", propertyID, checkout).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// NeedsCleaning lists entries whose window starts in [from, to) and that have
// no cleaning job, or only a cancelled one.
func (r *calendarRepository) NeedsCleaning(ctx context.Context, providerID uint, from, to time.Time) ([]models.CalendarEntry, error) {
	var entries []models.CalendarEntry
	err := r.db.WithContext(ctx).
		Select("calendar_entries.*").
		Joins("LEFT JOIN jobs ON jobs.id = calendar_entries.cleaning_job_id").
		Where("calendar_entries.provider_id = ?", providerID).
		Where("calendar_entries.clean_window_start >= ? AND calendar_entries.clean_window_start < ?", from, to).
		Where("(calendar_entries.cleaning_job_id IS NULL OR jobs.id IS NULL OR jobs.status = ?)", models.JobStatusCancelled).
		Order("calendar_entries.clean_window_start").
		Find(&entries).Error
	return entries, err
}

// SetCleaningJob links the entry to its cleaning job. UpdateColumns skips the
// BeforeSave hook, which would otherwise run against an empty model.
func (r *calendarRepository) SetCleaningJob(ctx context.Context, id, jobID uint) error {
	return r.db.WithContext(ctx).Model(&models.CalendarEntry{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"cleaning_job_id": jobID,
			"updated_at":      time.Now().UTC(),
		}).Error
}
