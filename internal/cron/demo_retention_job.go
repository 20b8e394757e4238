package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/trydo/wts-backend/pkg/logger"
)

const defaultDemoRetention = 30 * 24 * time.Hour

type DemoRetentionJobParams struct {
	Logger    *logger.Logger
	Demo      demoPruner
	Retention time.Duration
}

type demoPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

func NewDemoRetentionJob(params DemoRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Demo == nil {
		return nil, fmt.Errorf("demo service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultDemoRetention
	}
	return &demoRetentionJob{
		logg:      params.Logger,
		demo:      params.Demo,
		retention: retention,
	}, nil
}

type demoRetentionJob struct {
	logg      *logger.Logger
	demo      demoPruner
	retention time.Duration
}

func (j *demoRetentionJob) Name() string { return "demo-usage-retention" }

func (j *demoRetentionJob) Run(ctx context.Context) error {
	deleted, err := j.demo.Prune(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("demo retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_hours": int(j.retention.Hours()),
		"rows_deleted":    deleted,
	})
	j.logg.Info(logCtx, "demo usage retention complete")
	return nil
}
