package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trydo/wts-backend/internal/cron"
	"github.com/trydo/wts-backend/internal/demo"
	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/notifications"
	"github.com/trydo/wts-backend/internal/users"
	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/db"
	"github.com/trydo/wts-backend/pkg/instance"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/mailer"
	"github.com/trydo/wts-backend/pkg/metrics"
	"github.com/trydo/wts-backend/pkg/migrate"
	"github.com/trydo/wts-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	writer, err := db.NewWriter(dbClient, cfg.DB.WriterQueueSize, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to start db writer", err)
		os.Exit(1)
	}
	defer writer.Close()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	licenseMetrics := metrics.NewLicenseMetrics(prometheus.DefaultRegisterer)
	licenseRepo := licenses.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())

	demoService, err := demo.NewService(demo.ServiceParams{
		Repo:    demo.NewRepository(dbClient.DB()),
		Writer:  writer,
		Window:  cfg.Demo.Window,
		Logger:  logg,
		Metrics: licenseMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create demo service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.ServiceParams{
		Sender:   mailer.NewSendGrid(cfg.Sendgrid),
		Licenses: licenseRepo,
		Users:    userRepo,
		Password: cfg.Password,
		Writer:   writer,
		Logger:   logg,
		Metrics:  licenseMetrics,
		Timeout:  cfg.Sendgrid.Timeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	demoJob, err := cron.NewDemoRetentionJob(cron.DemoRetentionJobParams{
		Logger:    logg,
		Demo:      demoService,
		Retention: cfg.Demo.Retention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create demo retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if err := registry.Register(demoJob); err != nil {
		logg.Error(context.Background(), "failed to register demo retention job", err)
		os.Exit(1)
	}
	if cfg.Sendgrid.Enabled() {
		emailJob, err := cron.NewLicenseEmailRetryJob(cron.LicenseEmailRetryJobParams{
			Logger:   logg,
			Licenses: licenseRepo,
			Notifier: notificationService,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create license email retry job", err)
			os.Exit(1)
		}
		if err := registry.Register(emailJob); err != nil {
			logg.Error(context.Background(), "failed to register license email retry job", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "sendgrid api key missing, license email retry disabled")
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockEnv(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	ctx = logg.WithField(ctx, "jobs", registry.Names())

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil && !errors.Is(err, cron.ErrLockHeld) {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
