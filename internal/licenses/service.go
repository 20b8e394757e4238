package licenses

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trydo/wts-backend/internal/users"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/metrics"
	pkgpagination "github.com/trydo/wts-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes license activation and lookup semantics.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*ActivationResult, error)
	Get(ctx context.Context, key string) (*ListItem, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// ActivateInput is the caller supplied identity and key.
type ActivateInput struct {
	Email      string
	LicenseKey string
}

// ActivationResult describes the license and user after activation.
type ActivationResult struct {
	LicenseKey        string    `json:"license_key"`
	Email             string    `json:"email"`
	UserID            uuid.UUID `json:"user_id"`
	Activated         bool      `json:"activated"`
	ActivatedAt       time.Time `json:"activated_at"`
	AlreadyActivated  bool      `json:"already_activated"`
	PurchaserMismatch bool      `json:"purchaser_mismatch"`
}

// ServiceParams wires the activation service.
type ServiceParams struct {
	Repo    *Repository
	Users   *users.Repository
	Writer  txRunner
	Logger  *logger.Logger
	Metrics *metrics.LicenseMetrics
	Now     func() time.Time
}

type service struct {
	repo    *Repository
	users   *users.Repository
	writer  txRunner
	logg    *logger.Logger
	metrics *metrics.LicenseMetrics
	now     func() time.Time
}

// NewService builds the license service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Writer == nil {
		return nil, fmt.Errorf("writer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		users:   params.Users,
		writer:  params.Writer,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// Activate binds key to the user identified by email. Unknown keys fail with
// NOT_FOUND and leave the store untouched; repeat activations are no-ops.
func (s *service) Activate(ctx context.Context, input ActivateInput) (*ActivationResult, error) {
	email := users.NormalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid email is required")
	}
	key := NormalizeKey(input.LicenseKey)
	if !KeyPattern.MatchString(key) {
		s.metrics.IncActivation("not_found")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license key not found")
	}

	now := s.now().UTC()
	result := &ActivationResult{LicenseKey: key, Email: email, Activated: true}

	err := s.writer.WithTx(ctx, func(tx *gorm.DB) error {
		licenseRepo := s.repo.WithTx(tx)
		userRepo := s.users.WithTx(tx)

		license, err := licenseRepo.FindByKeyForUpdate(ctx, key)
		if err != nil {
			if IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "license key not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license")
		}

		result.AlreadyActivated = license.Activated
		result.PurchaserMismatch = !strings.EqualFold(license.Email, email)

		if err := licenseRepo.MarkActivated(ctx, key, email, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate license")
		}

		user, _, err := userRepo.FindOrCreate(ctx, users.CreateUserDTO{Email: email})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find or create user")
		}
		if err := userRepo.MarkActivated(ctx, user.ID, key, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate user")
		}

		result.UserID = user.ID
		result.ActivatedAt = now
		if license.ActivatedAt != nil {
			result.ActivatedAt = license.ActivatedAt.UTC()
		}
		return nil
	})
	if err != nil {
		s.metrics.IncActivation(strings.ToLower(string(pkgerrors.CodeOf(err))))
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"license_key":       key,
		"email":             email,
		"already_activated": result.AlreadyActivated,
	})
	if result.PurchaserMismatch {
		logCtx = s.logg.WithField(logCtx, "purchaser_mismatch", true)
		s.logg.Warn(logCtx, "license activated by an email other than the purchaser")
	} else {
		s.logg.Info(logCtx, "license activated")
	}
	if result.AlreadyActivated {
		s.metrics.IncActivation("repeat")
	} else {
		s.metrics.IncActivation("activated")
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, key string) (*ListItem, error) {
	license, err := s.repo.FindByKey(ctx, NormalizeKey(key))
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license key not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license")
	}
	item := toListItem(*license)
	return &item, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	window, err := pkgpagination.Open(params.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listQuery{
		email:     users.NormalizeEmail(params.Email),
		activated: params.Activated,
		window:    window,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list licenses")
	}

	page := pkgpagination.Collect(rows, window, licensePosition, toListItem)
	return &page, nil
}
