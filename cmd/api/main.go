package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/trydo/wts-backend/api/routes"
	"github.com/trydo/wts-backend/internal/auth"
	"github.com/trydo/wts-backend/internal/demo"
	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/notifications"
	"github.com/trydo/wts-backend/internal/payments"
	"github.com/trydo/wts-backend/internal/users"
	razorpaywebhook "github.com/trydo/wts-backend/internal/webhooks/razorpay"
	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/db"
	"github.com/trydo/wts-backend/pkg/instance"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/mailer"
	"github.com/trydo/wts-backend/pkg/metrics"
	"github.com/trydo/wts-backend/pkg/migrate"
	"github.com/trydo/wts-backend/pkg/razorpay"
	"github.com/trydo/wts-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	writer, err := db.NewWriter(dbClient, cfg.DB.WriterQueueSize, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to start db writer", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	// Without API keys create-order answers 503; webhooks still reconcile.
	rzpClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Warn(context.Background(), "razorpay orders disabled: "+err.Error())
	}

	licenseMetrics := metrics.NewLicenseMetrics(prometheus.DefaultRegisterer)

	userRepo := users.NewRepository(dbClient.DB())
	licenseRepo := licenses.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())

	sender := mailer.NewSendGrid(cfg.Sendgrid)
	if !cfg.Sendgrid.Enabled() {
		logg.Warn(context.Background(), "sendgrid api key missing, license emails will not be delivered")
	}

	notificationService, err := notifications.NewService(notifications.ServiceParams{
		Sender:   sender,
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

	guard, err := razorpaywebhook.NewInFlightGuard(redisClient, cfg.Webhook.InFlightTTL, razorpaywebhook.GuardScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Secret:   cfg.Razorpay.WebhookSecret,
		Payments: paymentRepo,
		Licenses: licenseRepo,
		Users:    userRepo,
		Writer:   writer,
		Guard:    guard,
		Notifier: notificationService,
		Password: cfg.Password,
		Logger:   logg,
		Metrics:  licenseMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	licenseService, err := licenses.NewService(licenses.ServiceParams{
		Repo:    licenseRepo,
		Users:   userRepo,
		Writer:  writer,
		Logger:  logg,
		Metrics: licenseMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create license service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(paymentRepo, licenseRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

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

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:    userRepo,
		LicenseRepo: licenseRepo,
		Writer:      writer,
		JWTConfig:   cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"mode":     cfg.App.Mode(),
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.Handler(),
			authService,
			licenseService,
			paymentsService,
			demoService,
			notificationService,
			rzpClient,
			webhookService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	errs = multierr.Append(errs, server.Shutdown(shutdownCtx))
	errs = multierr.Append(errs, webhookService.Wait(shutdownCtx))
	writer.Close()
	errs = multierr.Append(errs, redisClient.Close())
	errs = multierr.Append(errs, dbClient.Close())
	if errs != nil {
		logg.Error(ctx, "errors during shutdown", errs)
		exitCode = 1
	}
	os.Exit(exitCode)
}
