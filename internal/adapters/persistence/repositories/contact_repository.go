package repositories

import (
	"context"

	"libristack/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a new contact message repository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, msg *models.ContactMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// List returns messages newest first
func (r *contactRepository) List(ctx context.Context, offset, limit int) ([]*models.ContactMessage, int64, error) {
	var messages []*models.ContactMessage
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.ContactMessage{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}
