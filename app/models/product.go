package models

import (
	"encoding/json"
	"time"
)

// Product maps an aMember product id, scoped to an installation, to a local
// tier and display metadata, optionally pointing at an arbitrary local entity
// (mappable type + id). The ingestion path only reads these rows; they feed
// entitlement queries and outgoing notifications.
type Product struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	InstallationID uint      `gorm:"not null;index:ux_amember_products_inst_product,unique,priority:1" json:"installation_id"`
	ProductID      uint      `gorm:"not null;index:ux_amember_products_inst_product,unique,priority:2" json:"product_id"`
	Title          string    `gorm:"type:varchar(200)" json:"title"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Tier           string    `gorm:"type:varchar(50);index" json:"tier,omitempty"`
	DisplayName    string    `gorm:"type:varchar(200)" json:"display_name,omitempty"`
	Features       string    `gorm:"type:longtext" json:"features,omitempty"`
	MappableType   string    `gorm:"type:varchar(100);default:null" json:"mappable_type,omitempty"`
	MappableID     uint      `gorm:"default:null" json:"mappable_id,omitempty"`
	IsActive       bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "amember_products"
}

// HasFeature checks the JSON feature map for a truthy flag.
func (p *Product) HasFeature(feature string) bool {
	if p.Features == "" {
		return false
	}
	var features map[string]bool
	if err := json.Unmarshal([]byte(p.Features), &features); err != nil {
		return false
	}
	return features[feature]
}

// Label returns the display name, falling back to the title.
func (p *Product) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Title
}
