package repository

import (
	"strings"

	"github.com/greatplr/membersync/app/models"
	"gorm.io/gorm"
)

// installationRepository implements the InstallationRepository interface
type installationRepository struct {
	db *gorm.DB
}

// NewInstallationRepository creates a new installation repository instance
func NewInstallationRepository(db *gorm.DB) InstallationRepository {
	return &installationRepository{db: db}
}

func (r *installationRepository) GetByID(id uint) (*models.Installation, error) {
	var inst models.Installation
	err := r.db.First(&inst, id).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *installationRepository) GetBySlug(slug string) (*models.Installation, error) {
	var inst models.Installation
	err := r.db.Where("slug = ?", strings.TrimSpace(slug)).First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// GetActiveByIP resolves the sender of a webhook. Only active installations
// are considered; ip_address is unique, so at most one row can match.
func (r *installationRepository) GetActiveByIP(ip string) (*models.Installation, error) {
	var inst models.Installation
	err := r.db.Where("ip_address = ? AND is_active = ?", strings.TrimSpace(ip), true).First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *installationRepository) ListActive() ([]models.Installation, error) {
	var insts []models.Installation
	err := r.db.Where("is_active = ?", true).Order("name").Find(&insts).Error
	return insts, err
}
