package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trydo/wts-backend/api/controllers"
	webhookcontrollers "github.com/trydo/wts-backend/api/controllers/webhooks"
	"github.com/trydo/wts-backend/api/middleware"
	"github.com/trydo/wts-backend/internal/auth"
	"github.com/trydo/wts-backend/internal/demo"
	"github.com/trydo/wts-backend/internal/licenses"
	"github.com/trydo/wts-backend/internal/notifications"
	"github.com/trydo/wts-backend/internal/payments"
	"github.com/trydo/wts-backend/pkg/config"
	"github.com/trydo/wts-backend/pkg/db"
	"github.com/trydo/wts-backend/pkg/enums"
	"github.com/trydo/wts-backend/pkg/logger"
	"github.com/trydo/wts-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	authService auth.Service,
	licenseService licenses.Service,
	paymentsService payments.Service,
	demoService demo.Service,
	notificationsService notifications.Service,
	orderCreator controllers.OrderCreator,
	webhookService webhookcontrollers.RazorpayReconciler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.TrustProxies(cfg.App.TrustedProxyHops),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// A nil *redis.Client must reach the middleware as a nil interface so
	// rate limiting and idempotency switch themselves off.
	var (
		limiterStore     middleware.RateLimiterStore
		idempotencyStore redis.IdempotencyStore
	)
	readiness := map[string]controllers.Pinger{"postgres": dbP}
	if redisClient != nil {
		limiterStore = redisClient
		idempotencyStore = redisClient
		readiness["redis"] = redisClient
	}

	loginLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:     "login",
		Window:   cfg.AuthRateLimit.LoginWindow,
		PerIP:    cfg.AuthRateLimit.LoginIPLimit,
		PerEmail: cfg.AuthRateLimit.LoginEmailLimit,
	}, limiterStore, logg)
	activateLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "activate",
		Window: cfg.AuthRateLimit.ActivateWindow,
		PerIP:  cfg.AuthRateLimit.ActivateIPLimit,
	}, limiterStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Get("/api/status", controllers.Status(cfg))

	r.Route("/api/payment", func(r chi.Router) {
		r.With(middleware.Idempotency(idempotencyStore, middleware.IdempotencyPolicy{TTL: 24 * time.Hour}, logg)).
			Post("/create-order", controllers.CreateOrder(orderCreator, logg))
		r.Post("/webhook", webhookcontrollers.RazorpayWebhook(webhookService, logg))
	})

	r.Post("/api/check-demo", controllers.DemoCheck(demoService, logg))
	r.Post("/api/record-demo", controllers.DemoRecord(demoService, logg))

	r.With(activateLimit).
		Post("/api/v1/licenses/activate", controllers.LicenseActivate(licenseService, logg))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", controllers.AuthLogin(authService, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", controllers.AdminAuthLogin(authService, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Get("/ping", controllers.AdminPing())
		r.Get("/v1/payments", controllers.AdminPaymentList(paymentsService, logg))
		r.Get("/v1/payments/{id}", controllers.AdminPaymentGet(paymentsService, logg))
		r.Route("/v1/licenses", func(r chi.Router) {
			r.Get("/", controllers.AdminLicenseList(licenseService, logg))
			r.Get("/{key}", controllers.AdminLicenseGet(licenseService, logg))
			r.With(middleware.Idempotency(idempotencyStore, middleware.IdempotencyPolicy{TTL: 7 * 24 * time.Hour, Required: true}, logg)).
				Post("/{key}/resend", controllers.AdminLicenseResend(notificationsService, logg))
		})
	})

	return r
}
