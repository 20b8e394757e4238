package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/users"
	"github.com/trydo/wts-backend/pkg/config"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/mailer"
	"github.com/trydo/wts-backend/pkg/metrics"
	"github.com/trydo/wts-backend/pkg/security"
)

const defaultSendTimeout = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service delivers license keys by email.
type Service interface {
	// SendLicense is best-effort: failures are logged and returned but never
	// roll back the license they describe.
	SendLicense(ctx context.Context, email LicenseEmail) error
	// Resend re-delivers the email for an existing license. An owner who has
	// never logged in gets a fresh temporary password in the same email.
	Resend(ctx context.Context, key string) error
}

// ServiceParams wires the notification service.
type ServiceParams struct {
	Sender   mailer.Sender
	Licenses *licenses.Repository
	Users    *users.Repository
	Password config.PasswordConfig
	Writer   txRunner
	Logger   *logger.Logger
	Metrics  *metrics.LicenseMetrics
	Timeout  time.Duration
	Now      func() time.Time
}

type service struct {
	sender   mailer.Sender
	licenses *licenses.Repository
	users    *users.Repository
	password config.PasswordConfig
	writer   txRunner
	logg     *logger.Logger
	metrics  *metrics.LicenseMetrics
	timeout  time.Duration
	now      func() time.Time
}

// NewService builds the notification service.
func NewService(params ServiceParams) (Service, error) {
	if params.Sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if params.Licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Writer == nil {
		return nil, fmt.Errorf("writer required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		sender:   params.Sender,
		licenses: params.Licenses,
		users:    params.Users,
		password: params.Password,
		writer:   params.Writer,
		logg:     params.Logger,
		metrics:  params.Metrics,
		timeout:  timeout,
		now:      now,
	}, nil
}

func (s *service) SendLicense(ctx context.Context, email LicenseEmail) error {
	err := s.deliver(ctx, email, nil)
	var stampErr *stampError
	if errors.As(err, &stampErr) {
		// the email went out; a missing stamp only means the retry job may send it again
		return nil
	}
	return err
}

// stampError reports a delivered email whose bookkeeping transaction failed.
type stampError struct{ err error }

func (e *stampError) Error() string { return "record license email: " + e.err.Error() }
func (e *stampError) Unwrap() error { return e.err }

// deliver sends email and, once the provider accepts it, stamps email_sent_at
// and runs also inside the same writer transaction.
func (s *service) deliver(ctx context.Context, email LicenseEmail, also func(ctx context.Context, tx *gorm.DB) error) error {
	// the caller's request may finish before the provider answers
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"license_key": email.LicenseKey,
		"payment_id":  email.PaymentID,
		"email":       email.Email,
	})

	msg, err := ComposeLicenseEmail(email)
	if err != nil {
		s.metrics.IncEmail("failed")
		s.logg.Error(ctx, "license.email.compose_failed", err)
		return err
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrDisabled) {
			s.metrics.IncEmail("skipped")
			s.logg.Warn(ctx, "license email skipped: mailer disabled")
			return err
		}
		s.metrics.IncEmail("failed")
		s.logg.Error(ctx, "license.email.send_failed", err)
		return err
	}

	s.metrics.IncEmail("sent")
	s.logg.Info(ctx, "license email sent")

	sentAt := s.now().UTC()
	if err := s.writer.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.licenses.WithTx(tx).StampEmailSent(ctx, email.LicenseKey, sentAt); err != nil {
			return err
		}
		if also != nil {
			return also(ctx, tx)
		}
		return nil
	}); err != nil {
		s.logg.Error(ctx, "license.email.stamp_failed", err)
		return &stampError{err: err}
	}
	return nil
}

func (s *service) Resend(ctx context.Context, key string) error {
	license, err := s.licenses.FindByKey(ctx, licenses.NormalizeKey(key))
	if err != nil {
		if licenses.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "license key not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license")
	}
	if license.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "license has no email on record")
	}

	email := LicenseEmail{
		Email:      license.Email,
		LicenseKey: license.Key,
		PaymentID:  license.PaymentID,
	}

	owner, err := s.users.FindByEmail(ctx, license.Email)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		owner = nil
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load license owner")
	}

	var rotate func(ctx context.Context, tx *gorm.DB) error
	if owner != nil && owner.PasswordHash != nil && owner.LastLoginAt == nil {
		// the password mailed at purchase may never have arrived; only the hash is stored
		plain, hash, err := security.IssueTempPassword(s.password)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue temporary password")
		}
		email.TempPassword = plain
		ownerID, current := owner.ID, *owner.PasswordHash
		rotate = func(ctx context.Context, tx *gorm.DB) error {
			replaced, err := s.users.WithTx(tx).ReplaceTempPassword(ctx, ownerID, current, hash)
			if err != nil {
				return err
			}
			if !replaced {
				// owner logged in or changed credentials after the lookup
				s.logg.Warn(ctx, "license email temp password superseded")
			}
			return nil
		}
	}

	if err := s.deliver(ctx, email, rotate); err != nil {
		var stampErr *stampError
		if errors.As(err, &stampErr) && rotate == nil {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send license email")
	}
	return nil
}
