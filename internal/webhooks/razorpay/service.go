package razorpaywebhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/notifications"
	"github.com/trydo/wts-backend/internal/payments"
	"github.com/trydo/wts-backend/internal/users"
	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/db"
	"github.com/trydo/wts-backend/pkg/db/models"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/metrics"
	"github.com/trydo/wts-backend/pkg/razorpay"
	"github.com/trydo/wts-backend/pkg/security"
)

// Outcome statuses reported to the gateway.
const (
	StatusProcessed = "processed"
	StatusDuplicate = "duplicate"
	StatusIgnored   = "ignored"
)

// GuardScope namespaces in-flight keys for payment deliveries.
const GuardScope = "razorpay-payment"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type guard interface {
	Acquire(ctx context.Context, paymentID string) (bool, error)
	Release(ctx context.Context, paymentID string) error
}

type notifier interface {
	SendLicense(ctx context.Context, email notifications.LicenseEmail) error
}

// Outcome describes what a delivery did.
type Outcome struct {
	Status      string `json:"status"`
	Event       string `json:"event"`
	PaymentID   string `json:"payment_id,omitempty"`
	LicenseKey  string `json:"-"`
	UserCreated bool   `json:"-"`
}

type ServiceParams struct {
	Secret   string
	Payments *payments.Repository
	Licenses *licenses.Repository
	Users    *users.Repository
	Writer   txRunner
	Guard    guard
	Notifier notifier
	KeyGen   *licenses.KeyGenerator
	Password config.PasswordConfig
	Logger   *logger.Logger
	Metrics  *metrics.LicenseMetrics
	Now      func() time.Time
}

// Service reconciles captured payments into licenses exactly once per payment id.
type Service struct {
	secret   string
	payments *payments.Repository
	licenses *licenses.Repository
	users    *users.Repository
	writer   txRunner
	guard    guard
	notifier notifier
	keygen   *licenses.KeyGenerator
	password config.PasswordConfig
	logg     *logger.Logger
	metrics  *metrics.LicenseMetrics
	now      func() time.Time

	pending sync.WaitGroup
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.Licenses == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "licenses repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Writer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "writer required")
	}
	keygen := params.KeyGen
	if keygen == nil {
		keygen = licenses.NewKeyGenerator()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		secret:   params.Secret,
		payments: params.Payments,
		licenses: params.Licenses,
		users:    params.Users,
		writer:   params.Writer,
		guard:    params.Guard,
		notifier: params.Notifier,
		keygen:   keygen,
		password: params.Password,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

type reconciled struct {
	licenseKey   string
	tempPassword string
	userCreated  bool
	duplicate    bool
}

// Reconcile verifies and applies one webhook delivery. body must be the raw
// request bytes.
func (s *Service) Reconcile(ctx context.Context, body []byte, signature string) (*Outcome, error) {
	if !razorpay.VerifySignature(body, signature, s.secret) {
		s.metrics.IncWebhook("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "invalid signature")
	}

	event, err := decodeEvent(body)
	if err != nil {
		s.metrics.IncWebhook("rejected")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event")
	}

	outcome := &Outcome{Event: event.Event.String()}
	if !event.Event.Captured() {
		outcome.Status = StatusIgnored
		s.metrics.IncWebhook(StatusIgnored)
		s.logg.Info(s.logg.WithField(ctx, "event", outcome.Event), "webhook event ignored")
		return outcome, nil
	}

	entity := event.Payload.Payment.Entity
	if entity.ID == "" {
		s.metrics.IncWebhook("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id missing")
	}
	outcome.PaymentID = entity.ID
	ctx = s.logg.WithPaymentID(ctx, entity.ID)

	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, entity.ID)
		if err != nil {
			s.metrics.IncWebhook("failed")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire in-flight guard")
		}
		if !acquired {
			s.metrics.IncWebhook("in_flight")
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment is already being processed")
		}
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(ctx), entity.ID); err != nil {
				s.logg.Warn(ctx, "failed to release in-flight guard")
			}
		}()
	}

	result, err := s.record(ctx, entity)
	if err != nil {
		s.metrics.IncWebhook("failed")
		s.logg.Error(ctx, "webhook.reconcile_failed", err)
		return nil, err
	}

	if result.duplicate {
		outcome.Status = StatusDuplicate
		s.metrics.IncWebhook(StatusDuplicate)
		s.logg.Info(ctx, "duplicate payment delivery acknowledged")
		return outcome, nil
	}

	outcome.Status = StatusProcessed
	outcome.LicenseKey = result.licenseKey
	outcome.UserCreated = result.userCreated
	s.metrics.IncWebhook(StatusProcessed)
	s.logg.Info(s.logg.WithField(ctx, "license_key", result.licenseKey), "payment reconciled")

	if entity.Email == "" {
		s.logg.Warn(ctx, "captured payment has no email; user and email skipped")
		return outcome, nil
	}
	s.notify(ctx, notifications.LicenseEmail{
		Email:        entity.Email,
		LicenseKey:   result.licenseKey,
		PaymentID:    entity.ID,
		TempPassword: result.tempPassword,
	})
	return outcome, nil
}

// record applies the payment in one writer transaction.
func (s *Service) record(ctx context.Context, entity PaymentEntity) (*reconciled, error) {
	result := &reconciled{}
	receivedAt := s.now().UTC()

	err := s.writer.WithTx(ctx, func(tx *gorm.DB) error {
		paymentRepo := s.payments.WithTx(tx)
		licenseRepo := s.licenses.WithTx(tx)
		userRepo := s.users.WithTx(tx)

		exists, err := paymentRepo.Exists(ctx, entity.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment")
		}
		if exists {
			result.duplicate = true
			return nil
		}

		if err := paymentRepo.Create(ctx, &models.Payment{
			ID:         entity.ID,
			Email:      entity.Email,
			Amount:     entity.Amount,
			Currency:   entity.Currency,
			Status:     entity.status(),
			OrderID:    optional(entity.OrderID),
			Method:     optional(entity.Method),
			ReceivedAt: receivedAt,
		}); err != nil {
			return err
		}

		key, err := s.keygen.Unique(ctx, licenseRepo.Exists)
		if err != nil {
			return err
		}
		if _, err := licenseRepo.Create(ctx, &models.License{
			Key:       key,
			Email:     entity.Email,
			PaymentID: entity.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license")
		}
		result.licenseKey = key

		if entity.Email == "" {
			return nil
		}

		user, err := userRepo.FindByEmail(ctx, entity.Email)
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			tempPassword, hash, err := s.tempCredentials()
			if err != nil {
				return err
			}
			user, err = userRepo.Create(ctx, users.CreateUserDTO{Email: entity.Email, PasswordHash: &hash})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
			}
			result.tempPassword = tempPassword
			result.userCreated = true
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find user")
		}

		if err := userRepo.AttachLicense(ctx, user.ID, key); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach license")
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "payments") {
			// a concurrent delivery of the same id committed first
			return &reconciled{duplicate: true}, nil
		}
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}
		return nil, err
	}
	if result.duplicate {
		return &reconciled{duplicate: true}, nil
	}
	return result, nil
}

func (s *Service) tempCredentials() (string, string, error) {
	tempPassword, hash, err := security.IssueTempPassword(s.password)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue temporary password")
	}
	return tempPassword, hash, nil
}

// notify sends the license email in the background so the gateway gets its
// acknowledgement without waiting on the mail provider.
func (s *Service) notify(ctx context.Context, email notifications.LicenseEmail) {
	if s.notifier == nil {
		s.logg.Warn(ctx, "no notifier configured; license email skipped")
		return
	}
	detached := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		// failures are logged and counted by the notifier
		_ = s.notifier.SendLicense(detached, email)
	}()
}

// Wait blocks until background notifications finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
