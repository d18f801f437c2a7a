package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is the local identity a webhook-created subscription attaches to.
// AmemberUserID/AmemberInstallationID link it to at most one external user
// per installation; users created outside the webhook flow leave them unset.
type User struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Name                  string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=1,max=150"`
	Username              string         `gorm:"type:varchar(150);uniqueIndex" json:"username" validate:"required,min=1,max=150"`
	Email                 string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password              string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	AmemberUserID         *uint64        `gorm:"index:idx_users_amember_link,priority:2;default:null" json:"amember_user_id,omitempty"`
	AmemberInstallationID *uint          `gorm:"index:idx_users_amember_link,priority:1;default:null" json:"amember_installation_id,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsLinked reports whether the user is bound to an aMember identity.
func (u *User) IsLinked() bool {
	return u.AmemberUserID != nil && u.AmemberInstallationID != nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// RandomPassword returns a hex-encoded random credential for users created
// from webhook data. They authenticate through the external installation, so
// the local password only has to be unguessable.
func RandomPassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
