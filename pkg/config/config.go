package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	CORS          CORSConfig
	Razorpay      RazorpayConfig
	Sendgrid      SendgridConfig
	Webhook       WebhookConfig
	Demo          DemoConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WTS_APP_ENV" required:"true"`
	Port         string `envconfig:"WTS_APP_PORT" default:"10000"`
	LogLevel     string `envconfig:"WTS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"WTS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"WTS_LOG_WARN_STACK" default:"false"`
	// Reverse proxies in front of the API. Client IPs for rate limiting are
	// read this many hops from the right of X-Forwarded-For; 0 uses RemoteAddr.
	TrustedProxyHops int `envconfig:"WTS_TRUSTED_PROXY_HOPS" default:"1"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Mode is the label reported by the status endpoint.
func (a AppConfig) Mode() string {
	if a.IsProd() {
		return "LIVE"
	}
	return "TEST"
}

type ServiceConfig struct {
	Kind string `envconfig:"WTS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"WTS_DB_DSN"`
	SQLitePath string `envconfig:"WTS_SQLITE_PATH" default:"wts.db"`

	LegacyHost     string `envconfig:"WTS_DB_HOST"`
	LegacyPort     int    `envconfig:"WTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WTS_DB_USER"`
	LegacyPassword string `envconfig:"WTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"WTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"WTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements that take longer at warn; zero disables.
	SlowQueryThreshold time.Duration `envconfig:"WTS_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`

	// WriterQueueSize bounds the number of pending mutations waiting on the single writer.
	WriterQueueSize int `envconfig:"WTS_DB_WRITER_QUEUE_SIZE" default:"64"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WTS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WTS_REDIS_ADDR"`
	Password     string        `envconfig:"WTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"WTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WTS_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"WTS_REDIS_KEY_PREFIX" default:"wts"`
}

type JWTConfig struct {
	Secret            string `envconfig:"WTS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WTS_JWT_ISSUER" default:"wts-backend"`
	ExpirationMinutes int    `envconfig:"WTS_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WTS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WTS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WTS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WTS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WTS_ARGON_KEY_LEN" default:"32"`
	TempLength       int `envconfig:"WTS_TEMP_PASSWORD_LENGTH" default:"12"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"WTS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"WTS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"WTS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	ActivateWindow  time.Duration `envconfig:"WTS_AUTH_RATE_LIMIT_ACTIVATE_WINDOW" default:"5m"`
	ActivateIPLimit int           `envconfig:"WTS_AUTH_RATE_LIMIT_ACTIVATE_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WTS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WTS_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"WTS_CORS_ALLOWED_ORIGINS" default:"*"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"WTS_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"WTS_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"WTS_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	PriceMinor    int64  `envconfig:"WTS_RAZORPAY_PRICE_MINOR" default:"49900"`
	Currency      string `envconfig:"WTS_RAZORPAY_CURRENCY" default:"INR"`
}

// PriceMajor returns the configured price in whole currency units.
func (r RazorpayConfig) PriceMajor() int64 {
	return r.PriceMinor / 100
}

type SendgridConfig struct {
	APIKey      string        `envconfig:"WTS_SENDGRID_API_KEY"`
	DefaultFrom string        `envconfig:"WTS_SENDGRID_FROM_EMAIL" default:"grow@trydoschool.com"`
	FromName    string        `envconfig:"WTS_SENDGRID_FROM_NAME" default:"WTS By Trydo"`
	Timeout     time.Duration `envconfig:"WTS_SENDGRID_TIMEOUT" default:"10s"`
}

// Enabled reports whether outbound email can be attempted at all.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type WebhookConfig struct {
	InFlightTTL time.Duration `envconfig:"WTS_WEBHOOK_IN_FLIGHT_TTL" default:"1m"`
}

type DemoConfig struct {
	Window    time.Duration `envconfig:"WTS_DEMO_WINDOW" default:"1h"`
	Retention time.Duration `envconfig:"WTS_DEMO_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"WTS_CRON_INTERVAL" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
