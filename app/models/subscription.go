package models

import "time"

const (
	SubscriptionStatusPending = "pending"
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
)

// Subscription mirrors one aMember access record: one user's access to one
// product on one installation. The (installation_id, access_id) pair is the
// upsert key that makes webhook processing idempotent.
type Subscription struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	InstallationID uint       `gorm:"not null;index:ux_amember_subscriptions_inst_access,unique,priority:1" json:"installation_id"`
	AccessID       uint64     `gorm:"not null;index:ux_amember_subscriptions_inst_access,unique,priority:2" json:"access_id"`
	UserID         uint64     `gorm:"not null;index:idx_amember_subscriptions_user_product,priority:1;index" json:"user_id"`
	ProductID      uint       `gorm:"not null;index:idx_amember_subscriptions_user_product,priority:2;index" json:"product_id"`
	BeginDate      *time.Time `gorm:"type:timestamp;default:null" json:"begin_date,omitempty"`
	ExpireDate     *time.Time `gorm:"type:timestamp;default:null" json:"expire_date,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Data           string     `gorm:"type:longtext" json:"data"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "amember_subscriptions"
}

// DeriveStatus computes the subscription status from its date window. The
// status column is never taken from the sender; it is recomputed on every
// write. Both boundaries count as active: a subscription beginning exactly
// now is active, and one expiring exactly now is still active.
func DeriveStatus(now time.Time, begin, expire *time.Time) string {
	if begin != nil && now.Before(*begin) {
		return SubscriptionStatusPending
	}
	if expire != nil && now.After(*expire) {
		return SubscriptionStatusExpired
	}
	return SubscriptionStatusActive
}

// IsActive reports whether the subscription grants access at the given time.
func (s *Subscription) IsActive(now time.Time) bool {
	return DeriveStatus(now, s.BeginDate, s.ExpireDate) == SubscriptionStatusActive
}
