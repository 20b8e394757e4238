package demo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/trydo/wts-backend/pkg/db/models"
	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/metrics"
)

// DefaultWindow is how long a demo stays open after first use.
const DefaultWindow = time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Status is the throttle decision for a set of identities.
type Status struct {
	Allowed   bool          `json:"allowed"`
	Remaining time.Duration `json:"-"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// RetryAfterSeconds rounds Remaining up to whole seconds.
func (s Status) RetryAfterSeconds() int {
	if s.Remaining <= 0 {
		return 0
	}
	return int((s.Remaining + time.Second - 1) / time.Second)
}

// Session describes the demo window after Start.
type Session struct {
	ExpiresAt time.Time `json:"expires_at"`
	Started   bool      `json:"started"`
}

type Service interface {
	Check(ctx context.Context, ids []Identity) (*Status, error)
	Start(ctx context.Context, ids []Identity) (*Session, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type ServiceParams struct {
	Repo    *Repository
	Writer  txRunner
	Window  time.Duration
	Logger  *logger.Logger
	Metrics *metrics.LicenseMetrics
	Now     func() time.Time
}

type service struct {
	repo    *Repository
	writer  txRunner
	window  time.Duration
	logg    *logger.Logger
	metrics *metrics.LicenseMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("demo repository required")
	}
	if params.Writer == nil {
		return nil, fmt.Errorf("writer required")
	}
	window := params.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		writer:  params.Writer,
		window:  window,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// Check denies when any identity started a demo inside the window.
func (s *service) Check(ctx context.Context, ids []Identity) (*Status, error) {
	keys := keysOf(ids)
	if len(keys) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client identity required")
	}
	rows, err := s.repo.FindByIdentities(ctx, keys)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load demo usage")
	}

	now := s.now().UTC()
	expiresAt, live := s.latestExpiry(rows, now)
	if !live {
		s.metrics.IncDemo("allowed")
		return &Status{Allowed: true}, nil
	}

	s.metrics.IncDemo("denied")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"identities": keys,
		"expires_at": expiresAt,
	}), "demo.denied")
	return &Status{Allowed: false, Remaining: expiresAt.Sub(now), ExpiresAt: &expiresAt}, nil
}

// Start records now for every identity without a live entry. Live entries
// keep their original timestamp.
func (s *service) Start(ctx context.Context, ids []Identity) (*Session, error) {
	if len(keysOf(ids)) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client identity required")
	}

	now := s.now().UTC()
	session := &Session{}
	err := s.writer.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.FindByIdentities(ctx, keysOf(ids))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load demo usage")
		}
		existing := make(map[string]models.DemoUsage, len(rows))
		for _, row := range rows {
			existing[row.Identity] = row
		}

		armed := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			key := id.Key()
			if _, ok := armed[key]; ok {
				continue
			}
			armed[key] = struct{}{}

			if row, ok := existing[key]; ok && now.Before(row.FirstUsedAt.Add(s.window)) {
				continue
			}
			usage := &models.DemoUsage{Identity: key, Kind: id.Kind, FirstUsedAt: now}
			if err := repo.Arm(ctx, usage); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record demo usage")
			}
			existing[key] = *usage
			session.Started = true
		}

		all := make([]models.DemoUsage, 0, len(existing))
		for _, row := range existing {
			all = append(all, row)
		}
		session.ExpiresAt, _ = s.latestExpiry(all, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if session.Started {
		s.metrics.IncDemo("started")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"started":    session.Started,
		"expires_at": session.ExpiresAt,
	}), "demo.recorded")
	return session, nil
}

// Prune drops rows that expired more than retention ago.
func (s *service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention < s.window {
		retention = s.window
	}
	cutoff := s.now().UTC().Add(-retention)

	var deleted int64
	err := s.writer.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).DeleteBefore(ctx, cutoff)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune demo usage")
		}
		deleted = n
		return nil
	})
	return deleted, err
}

func (s *service) latestExpiry(rows []models.DemoUsage, now time.Time) (time.Time, bool) {
	var latest time.Time
	for _, row := range rows {
		expires := row.FirstUsedAt.UTC().Add(s.window)
		if !now.Before(expires) {
			continue
		}
		if expires.After(latest) {
			latest = expires
		}
	}
	return latest, !latest.IsZero()
}
