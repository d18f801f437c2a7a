package repository

import (
	"github.com/greatplr/membersync/app/models"
	"gorm.io/gorm"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByAmemberProduct(installationID uint, productID uint) (*models.Product, error) {
	var product models.Product
	err := r.db.Where("installation_id = ? AND product_id = ? AND is_active = ?", installationID, productID, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ListByTier(installationID uint, tier string) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("installation_id = ? AND tier = ? AND is_active = ?", installationID, tier, true).
		Find(&products).Error
	return products, err
}
