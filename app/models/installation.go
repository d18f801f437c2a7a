package models

import "time"

// Installation is one external aMember instance we accept webhooks from.
// Each installation has its own API credentials and webhook signing secret.
// Rows are administered out-of-band; the ingestion path only reads them.
type Installation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,min=2,max=100"`
	Slug          string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug" validate:"required,min=2,max=100"`
	APIURL        string    `gorm:"type:varchar(255);not null" json:"api_url" validate:"required,url"`
	IPAddress     string    `gorm:"type:varchar(45);default:null;uniqueIndex" json:"ip_address,omitempty"`
	LoginURL      string    `gorm:"type:varchar(255);default:null" json:"login_url,omitempty"`
	APIKey        string    `gorm:"type:varchar(255);not null" json:"-"`
	WebhookSecret string    `gorm:"type:varchar(255);default:null" json:"-"`
	IsActive      bool      `gorm:"default:true;index" json:"is_active"`
	Notes         string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Installation) TableName() string {
	return "amember_installations"
}

// HasWebhookSecret reports whether signature verification is enforced.
// Installations without a secret run in explicit "unsecured" mode.
func (i *Installation) HasWebhookSecret() bool {
	return i.WebhookSecret != ""
}
