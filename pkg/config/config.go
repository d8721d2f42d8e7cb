package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Pricing      PricingConfig
	Offers       OffersConfig
	Payment      PaymentConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FOODRIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"FOODRIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FOODRIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FOODRIDE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FOODRIDE_DB_DSN"`
	Driver string `envconfig:"FOODRIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FOODRIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODRIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODRIDE_DB_USER"`
	LegacyPassword string `envconfig:"FOODRIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODRIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODRIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FOODRIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODRIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODRIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODRIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODRIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FOODRIDE_REDIS_ADDR"`
	Password     string        `envconfig:"FOODRIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODRIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODRIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODRIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODRIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODRIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODRIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FOODRIDE_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"FOODRIDE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	JobsTopic         string `envconfig:"FOODRIDE_PUBSUB_JOBS_TOPIC" default:"fd-jobs"`
	NotificationTopic string `envconfig:"FOODRIDE_PUBSUB_NOTIFICATION_TOPIC" default:"fd-notification-events"`
}

// PricingConfig carries the platform-wide fee defaults used when no delivery
// zone matches, plus the earnings split knobs.
type PricingConfig struct {
	BaseFeeCents     int64   `envconfig:"FOODRIDE_PRICING_BASE_FEE_CENTS" default:"10000"`
	PerKmFeeCents    int64   `envconfig:"FOODRIDE_PRICING_PER_KM_FEE_CENTS" default:"2000"`
	ServiceFeeCents  int64   `envconfig:"FOODRIDE_PRICING_SERVICE_FEE_CENTS" default:"2000"`
	PlatformFeeCents int64   `envconfig:"FOODRIDE_PRICING_PLATFORM_FEE_CENTS" default:"1000"`
	MaxRadiusKm      float64 `envconfig:"FOODRIDE_PRICING_MAX_RADIUS_KM" default:"15"`
	// DriverSharePct is the percentage of the delivery fee paid out to the
	// fulfilling driver. The platform keeps the remainder.
	DriverSharePct int `envconfig:"FOODRIDE_PRICING_DRIVER_SHARE_PCT" default:"100"`
}

type OffersConfig struct {
	ExpiryWindow time.Duration `envconfig:"FOODRIDE_OFFERS_EXPIRY_WINDOW" default:"30m"`
}

type PaymentConfig struct {
	WebhookSecret  string        `envconfig:"FOODRIDE_PAYMENT_WEBHOOK_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"FOODRIDE_PAYMENT_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FOODRIDE_AUTO_MIGRATE" default:"false"`
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
