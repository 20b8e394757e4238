package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trydo/wts-backend/pkg/db/models"
	"github.com/trydo/wts-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	LicenseKey  *string        `json:"license_key,omitempty"`
	Activated   bool           `json:"activated"`
	ActivatedAt *time.Time     `json:"activated_at,omitempty"`
	Role        enums.UserRole `json:"role"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash *string
	LicenseKey   *string
	Role         enums.UserRole
}

// NormalizeEmail lowercases and trims an address so lookups and unique
// constraints agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		LicenseKey:  u.LicenseKey,
		Activated:   u.Activated,
		ActivatedAt: u.ActivatedAt,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if !role.IsValid() {
		role = enums.UserRoleUser
	}
	return &models.User{
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		LicenseKey:   c.LicenseKey,
		Role:         role,
	}
}
