package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/PropFox/app/models"
)

// contractRepository implements the ContractRepository interface
type contractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(contract).Error
}

// GetForProvider loads the contract with its customer and every link row (active or not)
func (r *contractRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.Contract, error) {
	var c models.Contract
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Properties", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ? AND provider_id = ?", id, providerID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contractRepository) UpdateFromStatus(ctx context.Context, contract *models.Contract, fromStatus string) error {
	res := r.db.WithContext(ctx).Model(contract).
		Where("status = ?", fromStatus).
		Select("*").
		Omit("id", "created_at", "deleted_at", clause.Associations).
		Updates(contract)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// ListDue returns ACTIVE contracts of every provider billed on billingDay
func (r *contractRepository) ListDue(ctx context.Context, billingDay int) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Properties").
		Where("status = ? AND billing_day = ?", models.ContractStatusActive, billingDay).
		Order("id").
		Find(&contracts).Error
	return contracts, err
}

func (r *contractRepository) GetLink(ctx context.Context, contractID, propertyID uint) (*models.ContractProperty, error) {
	var link models.ContractProperty
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND property_id = ?", contractID, propertyID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *contractRepository) SaveLink(ctx context.Context, link *models.ContractProperty) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(link).Error
}
