package auth

import (
	"time"

	"github.com/trydo/wts-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LicenseSummary describes the license bound to the user, if any.
type LicenseSummary struct {
	Key         string     `json:"key"`
	Activated   bool       `json:"activated"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// LoginResponse contains the token, user and license produced by a successful login.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresAt   time.Time       `json:"expires_at"`
	User        *users.UserDTO  `json:"user"`
	License     *LicenseSummary `json:"license,omitempty"`
}

// AdminLoginResponse mirrors LoginResponse while exposing the admin user.
type AdminLoginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *users.UserDTO `json:"user"`
}

// BearerToken returns the issued JWT.
func (r *LoginResponse) BearerToken() string { return r.AccessToken }

// BearerToken returns the issued JWT.
func (r *AdminLoginResponse) BearerToken() string { return r.AccessToken }
