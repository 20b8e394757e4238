package migrate

import (
	"context"
	"fmt"

	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/db"
	"github.com/trydo/wts-backend/pkg/logger"
)

// MaybeRunDev prepares the schema at boot. sqlite deployments always run the
// GORM auto-migration; Postgres runs the goose migrations only in dev with the
// feature flag enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.FeatureFlags.UseSQLite {
		ctx = logg.WithField(ctx, "path", cfg.DB.SQLitePath)
		logg.Info(ctx, "auto-migrating sqlite schema")
		return client.AutoMigrate(ctx)
	}

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	runner, err := NewRunner(sqlDB, DefaultDir, logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying goose migrations at boot")
	return runner.Up(ctx)
}
