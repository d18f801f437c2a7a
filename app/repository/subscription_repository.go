package repository

import (
	"github.com/greatplr/membersync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Upsert inserts or updates the row keyed by (installation_id, access_id).
// All mutable columns are overwritten, including the raw payload snapshot,
// so replayed or reordered webhooks converge on the latest applied state.
func (r *subscriptionRepository) Upsert(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "installation_id"},
			{Name: "access_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"product_id",
			"begin_date",
			"expire_date",
			"status",
			"data",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("installation_id = ? AND access_id = ?", sub.InstallationID, sub.AccessID).
		First(sub).Error
}

func (r *subscriptionRepository) GetByAccessID(installationID uint, accessID uint64) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("installation_id = ? AND access_id = ?", installationID, accessID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// DeleteByAccessID removes the record for one access grant. Deleting a row
// that does not exist is a no-op; duplicate or reordered revoke events must
// not fail.
func (r *subscriptionRepository) DeleteByAccessID(installationID uint, accessID uint64) (int64, error) {
	tx := r.db.Where("installation_id = ? AND access_id = ?", installationID, accessID).
		Delete(&models.Subscription{})
	return tx.RowsAffected, tx.Error
}

// DeleteByUserProduct is the fallback for sender versions whose revoke
// payload carries no access id, only the user/product pair.
func (r *subscriptionRepository) DeleteByUserProduct(installationID uint, userID uint64, productID uint) (int64, error) {
	tx := r.db.Where("installation_id = ? AND user_id = ? AND product_id = ?", installationID, userID, productID).
		Delete(&models.Subscription{})
	return tx.RowsAffected, tx.Error
}

func (r *subscriptionRepository) ListByUserID(installationID uint, userID uint64) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("installation_id = ? AND user_id = ?", installationID, userID).Find(&subs).Error
	return subs, err
}

// ListByLocalUser returns the subscriptions attached to a linked local user.
// Unlinked users have no entitlements by definition.
func (r *subscriptionRepository) ListByLocalUser(user *models.User) ([]models.Subscription, error) {
	if user == nil || !user.IsLinked() {
		return nil, nil
	}
	return r.ListByUserID(*user.AmemberInstallationID, *user.AmemberUserID)
}
