package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/trydo/wts-backend/pkg/db/models"
	"github.com/trydo/wts-backend/pkg/logger"
)

const (
	defaultEmailRetryGrace  = 15 * time.Minute
	defaultEmailRetryWindow = 7 * 24 * time.Hour
	defaultEmailRetryBatch  = 50
	defaultEmailRetryBudget = 5 * time.Minute
)

// LicenseEmailRetryJobParams configures redelivery of license emails that
// never reached the provider.
type LicenseEmailRetryJobParams struct {
	Logger   *logger.Logger
	Licenses unsentLicensesRepository
	Notifier licenseResender
	Grace    time.Duration
	Window   time.Duration
	Batch    int
	// Timeout bounds a whole run; unsent licenses are picked up next cycle.
	Timeout time.Duration
}

type unsentLicensesRepository interface {
	ListUnsent(ctx context.Context, from, to time.Time, limit int) ([]models.License, error)
}

type licenseResender interface {
	Resend(ctx context.Context, key string) error
}

// NewLicenseEmailRetryJob constructs the license email retry cron job.
func NewLicenseEmailRetryJob(params LicenseEmailRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultEmailRetryGrace
	}
	window := params.Window
	if window <= 0 {
		window = defaultEmailRetryWindow
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultEmailRetryBatch
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultEmailRetryBudget
	}
	return &licenseEmailRetryJob{
		logg:     params.Logger,
		licenses: params.Licenses,
		notifier: params.Notifier,
		grace:    grace,
		window:   window,
		batch:    batch,
		timeout:  timeout,
		now:      time.Now,
	}, nil
}

type licenseEmailRetryJob struct {
	logg     *logger.Logger
	licenses unsentLicensesRepository
	notifier licenseResender
	grace    time.Duration
	window   time.Duration
	batch    int
	timeout  time.Duration
	now      func() time.Time
}

func (j *licenseEmailRetryJob) Name() string { return "license-email-retry" }

func (j *licenseEmailRetryJob) Timeout() time.Duration { return j.timeout }

// Run skips licenses younger than the grace period so the post-commit send
// from the webhook is not duplicated.
func (j *licenseEmailRetryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	to := now.Add(-j.grace)
	from := now.Add(-j.window)

	pending, err := j.licenses.ListUnsent(ctx, from, to, j.batch)
	if err != nil {
		return fmt.Errorf("list unsent licenses: %w", err)
	}

	var (
		errs error
		sent int
	)
	for _, license := range pending {
		if err := j.notifier.Resend(ctx, license.Key); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("resend %s: %w", license.Key, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending": len(pending),
		"sent":    sent,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "license email retry complete")
	return errs
}
