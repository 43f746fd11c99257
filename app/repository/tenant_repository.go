package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
)

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) GetProvider(ctx context.Context, id uint) (*models.ServiceProvider, error) {
	var p models.ServiceProvider
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *tenantRepository) ProviderBelongsToTenant(ctx context.Context, providerID, tenantID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ServiceProvider{}).
		Where("id = ? AND tenant_id = ?", providerID, tenantID).
		Count(&n).Error
	return n > 0, err
}

// customerRepository implements the CustomerRepository interface
type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *customerRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.Customer, error) {
	var c models.Customer
	err := r.db.WithContext(ctx).Where("id = ? AND provider_id = ?", id, providerID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) GetByID(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// propertyRepository implements the PropertyRepository interface
type propertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

// GetForProvider loads a property whose customer belongs to the provider
func (r *propertyRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.Property, error) {
	var p models.Property
	owned := r.db.Model(&models.Customer{}).Select("id").Where("provider_id = ?", providerID)
	err := r.db.WithContext(ctx).Where("id = ? AND customer_id IN (?)", id, owned).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Owners resolves property → customer → provider → tenant for a batch of ids.
// Soft-deleted properties are included so old history keeps its name.
func (r *propertyRepository) Owners(ctx context.Context, ids []uint) (map[uint]SubjectOwner, error) {
	if len(ids) == 0 {
		return map[uint]SubjectOwner{}, nil
	}
	var rows []SubjectOwner
	err := r.db.WithContext(ctx).Table("properties").
		Select("properties.id AS id, properties.name AS name, properties.id AS property_id, customers.provider_id AS provider_id, service_providers.tenant_id AS tenant_id").
		Joins("JOIN customers ON customers.id = properties.customer_id").
		Joins("JOIN service_providers ON service_providers.id = customers.provider_id").
		Where("properties.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return indexOwners(rows), nil
}

func indexOwners(rows []SubjectOwner) map[uint]SubjectOwner {
	out := make(map[uint]SubjectOwner, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out
}
