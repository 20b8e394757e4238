package config

// EnvPrefix is handed to envconfig; every field below spells out its full variable name.
const EnvPrefix = "WTS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "WTS_APP_ENV"
	EnvPort     = "WTS_APP_PORT"
	EnvLogLevel = "WTS_LOG_LEVEL"

	EnvDBDSN  = "WTS_DB_DSN"
	EnvDBHost = "WTS_DB_HOST"
	EnvDBUser = "WTS_DB_USER"
	EnvDBName = "WTS_DB_NAME"

	EnvRedisURL = "WTS_REDIS_URL"

	EnvJWTSecret  = "WTS_JWT_SECRET"
	EnvJWTIssuer  = "WTS_JWT_ISSUER"
	EnvJWTExpMins = "WTS_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite  = "WTS_USE_SQLITE"
	EnvSQLitePath = "WTS_SQLITE_PATH"

	EnvRazorpayKeyID         = "WTS_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret     = "WTS_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookSecret = "WTS_RAZORPAY_WEBHOOK_SECRET"
	EnvRazorpayPriceMinor    = "WTS_RAZORPAY_PRICE_MINOR"

	EnvSendgridAPIKey = "WTS_SENDGRID_API_KEY"
	EnvSendgridFrom   = "WTS_SENDGRID_FROM_EMAIL"

	EnvDemoWindow = "WTS_DEMO_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
