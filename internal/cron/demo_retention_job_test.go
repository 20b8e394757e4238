package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trydo/wts-backend/pkg/logger"
)

func TestDemoRetentionJobPrunesWithRetention(t *testing.T) {
	pruner := &fakeDemoPruner{deleted: 7}
	job := newDemoRetentionJob(t, pruner, 48*time.Hour)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pruner.called != 1 {
		t.Fatalf("expected prune called once, got %d", pruner.called)
	}
	if pruner.lastRetention != 48*time.Hour {
		t.Fatalf("expected retention 48h, got %s", pruner.lastRetention)
	}
}

func TestDemoRetentionJobDefaultsRetention(t *testing.T) {
	pruner := &fakeDemoPruner{}
	job := newDemoRetentionJob(t, pruner, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pruner.lastRetention != defaultDemoRetention {
		t.Fatalf("expected default retention, got %s", pruner.lastRetention)
	}
}

func TestDemoRetentionJobPropagatesErrors(t *testing.T) {
	job := newDemoRetentionJob(t, &fakeDemoPruner{err: errors.New("boom")}, time.Hour)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newDemoRetentionJob(t *testing.T, pruner *fakeDemoPruner, retention time.Duration) Job {
	t.Helper()
	job, err := NewDemoRetentionJob(DemoRetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Demo:      pruner,
		Retention: retention,
	})
	if err != nil {
		t.Fatalf("NewDemoRetentionJob: %v", err)
	}
	if job.Name() != "demo-usage-retention" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	return job
}

type fakeDemoPruner struct {
	lastRetention time.Duration
	deleted       int64
	err           error
	called        int
}

func (f *fakeDemoPruner) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	f.called++
	f.lastRetention = retention
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}
