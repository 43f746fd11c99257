package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PropFox/app/models"
)

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) ListForCustomer(ctx context.Context, customerID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Notification
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("created_at DESC").Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}
