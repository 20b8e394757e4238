package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trydo/wts-backend/pkg/enums"
)

// User represents a purchaser or operator identified by email.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash *string        `gorm:"column:password_hash"`
	LicenseKey   *string        `gorm:"column:license_key;type:text"`
	Activated    bool           `gorm:"column:activated;not null;default:false"`
	ActivatedAt  *time.Time     `gorm:"column:activated_at"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;default:'user'"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so inserts do not depend on a database default.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = enums.UserRoleUser
	}
	return nil
}
