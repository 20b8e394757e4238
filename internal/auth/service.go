package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/users"
	pkgAuth "github.com/trydo/wts-backend/pkg/auth"
	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/db/models"
	"github.com/trydo/wts-backend/pkg/enums"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	AdminLogin(ctx context.Context, req LoginRequest) (*AdminLoginResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	users    *users.Repository
	licenses *licenses.Repository
	writer   txRunner
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo    *users.Repository
	LicenseRepo *licenses.Repository
	Writer      txRunner
	JWTConfig   config.JWTConfig
	Now         func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.LicenseRepo == nil {
		return nil, fmt.Errorf("license repository is required")
	}
	if params.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if strings.TrimSpace(params.JWTConfig.Secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:    params.UserRepo,
		licenses: params.LicenseRepo,
		writer:   params.Writer,
		jwtCfg:   params.JWTConfig,
		now:      now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.mint(now, user, user.Role)
	if err != nil {
		return nil, err
	}

	resp := &LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        users.FromModel(user),
	}
	if user.LicenseKey != nil {
		license, err := s.licenses.FindByKey(ctx, *user.LicenseKey)
		switch {
		case err == nil:
			resp.License = &LicenseSummary{
				Key:         license.Key,
				Activated:   license.Activated,
				ActivatedAt: license.ActivatedAt,
			}
		case licenses.IsNotFound(err):
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license")
		}
	}
	return resp, nil
}

// AdminLogin only succeeds for users whose role column is admin.
func (s *service) AdminLogin(ctx context.Context, req LoginRequest) (*AdminLoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if user.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.mint(now, user, enums.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	return &AdminLoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := users.NormalizeEmail(email)
	if input == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	// users created through activation alone have no password
	if user.PasswordHash == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	valid, err := security.VerifyPassword(password, *user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := s.now().UTC()
	err := s.writer.WithTx(ctx, func(tx *gorm.DB) error {
		return s.users.WithTx(tx).UpdateLastLogin(ctx, user.ID, now)
	})
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}

func (s *service) mint(now time.Time, user *models.User, role enums.UserRole) (string, time.Time, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       role,
		LicenseKey: user.LicenseKey,
		JTI:        uuid.NewString(),
	})
	if err != nil {
		return "", time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token.Value, token.ExpiresAt, nil
}
