package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
)

var (
	// ErrStaleVersion is returned when a job changed since it was read.
	ErrStaleVersion = errors.New("job was modified concurrently")
	// ErrStatusChanged is returned when a status-guarded update matched no row.
	ErrStatusChanged = errors.New("status was changed concurrently")
)

// jobRepository implements the JobRepository interface
type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.Version == 0 {
		job.Version = 1
	}
	return r.db.WithContext(ctx).Omit("Property").Create(job).Error
}

func (r *jobRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where("id = ? AND provider_id = ?", id, providerID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) UpdateVersioned(ctx context.Context, job *models.Job, expectedVersion int) error {
	job.Version = expectedVersion + 1
	res := r.db.WithContext(ctx).Model(job).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("id", "created_at", "Property").
		Updates(job)
	if res.Error != nil {
		job.Version = expectedVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		job.Version = expectedVersion
		return ErrStaleVersion
	}
	return nil
}

func (r *jobRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Job{}, id).Error
}

// BookedOnDate lists the worker's SCHEDULED and IN_PROGRESS jobs on date
func (r *jobRepository) BookedOnDate(ctx context.Context, workerID uint, date time.Time, excludeJobID uint) ([]models.Job, error) {
	q := r.db.WithContext(ctx).
		Where("assigned_worker_id = ? AND scheduled_date = ? AND status IN ?",
			workerID, date, []string{models.JobStatusScheduled, models.JobStatusInProgress})
	if excludeJobID != 0 {
		q = q.Where("id <> ?", excludeJobID)
	}
	var jobs []models.Job
	err := q.Order("start_time").Order("id").Find(&jobs).Error
	return jobs, err
}

// CountCompleted counts jobs completed in [from, to) that belong to the
// contract, either directly or through one of its properties.
func (r *jobRepository) CountCompleted(ctx context.Context, contractID uint, propertyIDs []uint, from, to time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", models.JobStatusCompleted, from, to)
	if len(propertyIDs) > 0 {
		q = q.Where("(contract_id = ? OR (contract_id IS NULL AND property_id IN ?))", contractID, propertyIDs)
	} else {
		q = q.Where("contract_id = ?", contractID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *jobRepository) Owners(ctx context.Context, ids []uint) (map[uint]SubjectOwner, error) {
	if len(ids) == 0 {
		return map[uint]SubjectOwner{}, nil
	}
	var rows []SubjectOwner
	err := r.db.WithContext(ctx).Table("jobs").
		Select("jobs.id AS id, jobs.title AS name, jobs.property_id AS property_id, customers.provider_id AS provider_id, service_providers.tenant_id AS tenant_id").
		Joins("JOIN properties ON properties.id = jobs.property_id").
		Joins("JOIN customers ON customers.id = properties.customer_id").
		Joins("JOIN service_providers ON service_providers.id = customers.provider_id").
		Where("jobs.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return indexOwners(rows), nil
}
