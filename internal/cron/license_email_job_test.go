package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trydo/wts-backend/pkg/db/models"
	"github.com/trydo/wts-backend/pkg/logger"
)

func TestLicenseEmailRetryJobResendsPending(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeUnsentRepo{rows: []models.License{{Key: "WTS-A"}, {Key: "WTS-B"}}}
	resender := &fakeResender{}
	job := newLicenseEmailRetryJob(t, repo, resender)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultEmailRetryGrace); !repo.to.Equal(want) {
		t.Fatalf("expected upper bound %s, got %s", want, repo.to)
	}
	if want := now.Add(-defaultEmailRetryWindow); !repo.from.Equal(want) {
		t.Fatalf("expected lower bound %s, got %s", want, repo.from)
	}
	if repo.limit != defaultEmailRetryBatch {
		t.Fatalf("expected batch %d, got %d", defaultEmailRetryBatch, repo.limit)
	}
	if len(resender.keys) != 2 || resender.keys[0] != "WTS-A" || resender.keys[1] != "WTS-B" {
		t.Fatalf("unexpected resends %v", resender.keys)
	}
}

func TestLicenseEmailRetryJobContinuesAfterFailure(t *testing.T) {
	repo := &fakeUnsentRepo{rows: []models.License{{Key: "WTS-A"}, {Key: "WTS-B"}}}
	resender := &fakeResender{fail: map[string]error{"WTS-A": errors.New("provider down")}}
	job := newLicenseEmailRetryJob(t, repo, resender)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(resender.keys) != 2 {
		t.Fatalf("expected both licenses attempted, got %v", resender.keys)
	}
}

func TestLicenseEmailRetryJobPropagatesListErrors(t *testing.T) {
	job := newLicenseEmailRetryJob(t, &fakeUnsentRepo{err: errors.New("db down")}, &fakeResender{})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestLicenseEmailRetryJobHasRunBudget(t *testing.T) {
	job := newLicenseEmailRetryJob(t, &fakeUnsentRepo{}, &fakeResender{})
	var asJob Job = job
	tj, ok := asJob.(TimeoutJob)
	if !ok || tj.Timeout() != defaultEmailRetryBudget {
		t.Fatalf("expected default run budget, got ok=%v", ok)
	}
}

func newLicenseEmailRetryJob(t *testing.T, repo *fakeUnsentRepo, resender *fakeResender) *licenseEmailRetryJob {
	t.Helper()
	jobIface, err := NewLicenseEmailRetryJob(LicenseEmailRetryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Licenses: repo,
		Notifier: resender,
	})
	if err != nil {
		t.Fatalf("NewLicenseEmailRetryJob: %v", err)
	}
	job, ok := jobIface.(*licenseEmailRetryJob)
	if !ok {
		t.Fatalf("expected licenseEmailRetryJob, got %T", jobIface)
	}
	return job
}

type fakeUnsentRepo struct {
	rows  []models.License
	err   error
	from  time.Time
	to    time.Time
	limit int
}

func (f *fakeUnsentRepo) ListUnsent(ctx context.Context, from, to time.Time, limit int) ([]models.License, error) {
	f.from, f.to, f.limit = from, to, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeResender struct {
	keys []string
	fail map[string]error
}

func (f *fakeResender) Resend(ctx context.Context, key string) error {
	f.keys = append(f.keys, key)
	return f.fail[key]
}
