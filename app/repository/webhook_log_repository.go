package repository

import (
	"github.com/greatplr/membersync/app/models"
	"gorm.io/gorm"
)

// webhookLogRepository implements the WebhookLogRepository interface
type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

func (r *webhookLogRepository) Insert(log *models.WebhookLog) error {
	return r.db.Create(log).Error
}
