package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) GetForProvider(ctx context.Context, id, providerID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).Where("id = ? AND provider_id = ?", id, providerID).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindForPeriod returns the contract's cleaning invoice for the period
func (r *invoiceRepository) FindForPeriod(ctx context.Context, contractID uint, periodStart, periodEnd time.Time) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).
		Where("kind = ? AND contract_id = ? AND period_start = ? AND period_end = ?",
			models.InvoiceKindCleaning, contractID, periodStart, periodEnd).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) FindForJob(ctx context.Context, jobID uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateFromStatus guards the write on the status the invoice was read in, so
// a PAID invoice is never overwritten by a copy taken while it was PENDING.
func (r *invoiceRepository) UpdateFromStatus(ctx context.Context, invoice *models.Invoice, fromStatus string) error {
	res := r.db.WithContext(ctx).Model(invoice).
		Where("status = ?", fromStatus).
		Select("*").
		Omit("id", "created_at").
		Updates(invoice)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *invoiceRepository) SetArchiveKey(ctx context.Context, id uint, key string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Update("archive_object_key", key).Error
}
