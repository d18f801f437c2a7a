package entitlements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/greatplr/membersync/app/models"
	"github.com/greatplr/membersync/app/repository"
	"github.com/greatplr/membersync/internal/pkg/config"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Installation{},
		&models.Subscription{},
		&models.Product{},
		&models.User{},
	)
	require.NoError(t, err)

	cfg := config.Settings{CacheEnabled: false}
	return NewService(repository.NewRepositories(db), cfg), db
}

func seedUser(t *testing.T, db *gorm.DB, email string, amemberUserID uint64, installationID uint) *models.User {
	user := &models.User{
		Name:                  "Jane Doe",
		Username:              "jane",
		Email:                 email,
		Password:              "irrelevant",
		AmemberUserID:         &amemberUserID,
		AmemberInstallationID: &installationID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedSubscription(t *testing.T, db *gorm.DB, installationID uint, accessID, userID uint64, productID uint, begin, expire *time.Time) {
	sub := &models.Subscription{
		InstallationID: installationID,
		AccessID:       accessID,
		UserID:         userID,
		ProductID:      productID,
		BeginDate:      begin,
		ExpireDate:     expire,
		Status:         models.DeriveStatus(time.Now(), begin, expire),
	}
	require.NoError(t, db.Create(sub).Error)
}

func TestActiveSubscriptions_FiltersByWindow(t *testing.T) {
	svc, db := setupService(t)
	seedUser(t, db, "jane@example.com", 42, 1)

	past := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)

	seedSubscription(t, db, 1, 100, 42, 7, &recent, &future) // active
	seedSubscription(t, db, 1, 101, 42, 8, &past, &recent)   // expired
	seedSubscription(t, db, 1, 102, 42, 9, &future, nil)     // pending

	active, err := svc.ActiveSubscriptions("jane@example.com")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, uint64(100), active[0].AccessID)
}

func TestActiveSubscriptions_UnknownUser(t *testing.T) {
	svc, _ := setupService(t)

	active, err := svc.ActiveSubscriptions("nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestActiveSubscriptions_UnlinkedUserHasNone(t *testing.T) {
	svc, db := setupService(t)

	user := &models.User{Name: "Jane", Username: "jane", Email: "jane@example.com", Password: "x"}
	require.NoError(t, db.Create(user).Error)

	active, err := svc.ActiveSubscriptions("jane@example.com")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestHasProductAccess(t *testing.T) {
	svc, db := setupService(t)
	seedUser(t, db, "jane@example.com", 42, 1)

	recent := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)
	seedSubscription(t, db, 1, 100, 42, 7, &recent, &future)

	has, err := svc.HasProductAccess("jane@example.com", 7)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasProductAccess("jane@example.com", 8)
	require.NoError(t, err)
	assert.False(t, has)

	// Any of the listed products is enough.
	has, err = svc.HasProductAccess("jane@example.com", 8, 7)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHasActiveSubscription(t *testing.T) {
	svc, db := setupService(t)
	seedUser(t, db, "jane@example.com", 42, 1)

	has, err := svc.HasActiveSubscription("jane@example.com")
	require.NoError(t, err)
	assert.False(t, has)

	recent := time.Now().Add(-time.Hour)
	seedSubscription(t, db, 1, 100, 42, 7, &recent, nil)

	has, err = svc.HasActiveSubscription("jane@example.com")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHasTierAccess(t *testing.T) {
	svc, db := setupService(t)
	seedUser(t, db, "jane@example.com", 42, 1)

	recent := time.Now().Add(-time.Hour)
	seedSubscription(t, db, 1, 100, 42, 7, &recent, nil)

	mapping := &models.Product{
		InstallationID: 1,
		ProductID:      7,
		Title:          "Gold Membership",
		Tier:           "gold",
		IsActive:       true,
	}
	require.NoError(t, db.Create(mapping).Error)

	has, err := svc.HasTierAccess("jane@example.com", "gold")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasTierAccess("jane@example.com", "platinum")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHasFeatureAccess(t *testing.T) {
	svc, db := setupService(t)
	seedUser(t, db, "jane@example.com", 42, 1)

	recent := time.Now().Add(-time.Hour)
	seedSubscription(t, db, 1, 100, 42, 7, &recent, nil)

	mapping := &models.Product{
		InstallationID: 1,
		ProductID:      7,
		Title:          "Gold Membership",
		Tier:           "gold",
		Features:       `{"downloads":true,"forum":false}`,
		IsActive:       true,
	}
	require.NoError(t, db.Create(mapping).Error)

	has, err := svc.HasFeatureAccess("jane@example.com", "downloads")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasFeatureAccess("jane@example.com", "forum")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = svc.HasFeatureAccess("jane@example.com", "api")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHasTierAccess_UnmappedProduct(t *testing.T) {
	svc, db := setupService(t)
	seedUser(t, db, "jane@example.com", 42, 1)

	recent := time.Now().Add(-time.Hour)
	seedSubscription(t, db, 1, 100, 42, 7, &recent, nil)

	has, err := svc.HasTierAccess("jane@example.com", "gold")
	require.NoError(t, err)
	assert.False(t, has)
}
