package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropFox/app/models"
)

// workerRepository implements the WorkerRepository interface
type workerRepository struct {
	db *gorm.DB
}

func NewWorkerRepository(db *gorm.DB) WorkerRepository {
	return &workerRepository{db: db}
}

func (r *workerRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.Worker, error) {
	var w models.Worker
	err := r.db.WithContext(ctx).Where("id = ? AND provider_id = ?", id, providerID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workerRepository) LockForProvider(ctx context.Context, id, providerID uint) (*models.Worker, error) {
	var w models.Worker
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND provider_id = ?", id, providerID).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workerRepository) Owners(ctx context.Context, ids []uint) (map[uint]SubjectOwner, error) {
	if len(ids) == 0 {
		return map[uint]SubjectOwner{}, nil
	}
	var rows []SubjectOwner
	err := r.db.WithContext(ctx).Table("workers").
		Select("workers.id AS id, workers.name AS name, workers.provider_id AS provider_id, service_providers.tenant_id AS tenant_id").
		Joins("JOIN service_providers ON service_providers.id = workers.provider_id").
		Where("workers.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return indexOwners(rows), nil
}

// contractorRepository implements the ContractorRepository interface
type contractorRepository struct {
	db *gorm.DB
}

func NewContractorRepository(db *gorm.DB) ContractorRepository {
	return &contractorRepository{db: db}
}

func (r *contractorRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.Contractor, error) {
	var c models.Contractor
	err := r.db.WithContext(ctx).Where("id = ? AND provider_id = ?", id, providerID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
