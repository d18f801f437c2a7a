package repository

import (
	"github.com/greatplr/membersync/app/models"
	"gorm.io/gorm"
)

// InstallationRepository defines lookups against registered aMember
// installations. The webhook path never writes installations.
type InstallationRepository interface {
	GetByID(id uint) (*models.Installation, error)
	GetBySlug(slug string) (*models.Installation, error)
	GetActiveByIP(ip string) (*models.Installation, error)
	ListActive() ([]models.Installation, error)
}

// SubscriptionRepository defines the interface for entitlement record
// database operations. Upsert must be a single atomic statement keyed on
// (installation_id, access_id) so concurrent workers cannot interleave
// partial writes for the same key.
type SubscriptionRepository interface {
	Upsert(sub *models.Subscription) error
	GetByAccessID(installationID uint, accessID uint64) (*models.Subscription, error)
	DeleteByAccessID(installationID uint, accessID uint64) (int64, error)
	DeleteByUserProduct(installationID uint, userID uint64, productID uint) (int64, error)
	ListByUserID(installationID uint, userID uint64) ([]models.Subscription, error)
	ListByLocalUser(user *models.User) ([]models.Subscription, error)
}

// UserRepository defines the interface for local user identity operations
// used by webhook reconciliation.
type UserRepository interface {
	Create(user *models.User) error
	Update(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAmemberID(amemberUserID uint64, installationID uint) (*models.User, error)
	UsernameExists(username string) (bool, error)
}

// ProductRepository defines lookups for product tier mappings.
type ProductRepository interface {
	GetByAmemberProduct(installationID uint, productID uint) (*models.Product, error)
	ListByTier(installationID uint, tier string) ([]models.Product, error)
}

// WebhookLogRepository is the append-only audit sink. There is no read or
// delete contract; retrieval is an operator concern.
type WebhookLogRepository interface {
	Insert(entry *models.WebhookLog) error
}

// Repositories holds all repository instances
type Repositories struct {
	Installation InstallationRepository
	Subscription SubscriptionRepository
	User         UserRepository
	Product      ProductRepository
	WebhookLog   WebhookLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Installation: NewInstallationRepository(db),
		Subscription: NewSubscriptionRepository(db),
		User:         NewUserRepository(db),
		Product:      NewProductRepository(db),
		WebhookLog:   NewWebhookLogRepository(db),
	}
}
