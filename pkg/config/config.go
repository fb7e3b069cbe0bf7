package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Payments PaymentsConfig
	Orders   OrdersConfig
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
	Env          string `envconfig:"TABLEBIRD_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLEBIRD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLEBIRD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLEBIRD_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"TABLEBIRD_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TABLEBIRD_DB_DSN"`
	Driver string `envconfig:"TABLEBIRD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TABLEBIRD_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLEBIRD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLEBIRD_DB_USER"`
	LegacyPassword string `envconfig:"TABLEBIRD_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLEBIRD_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLEBIRD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLEBIRD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLEBIRD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLEBIRD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLEBIRD_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"TABLEBIRD_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLEBIRD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABLEBIRD_REDIS_ADDR"`
	Password     string        `envconfig:"TABLEBIRD_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLEBIRD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLEBIRD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLEBIRD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLEBIRD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLEBIRD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLEBIRD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TABLEBIRD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TABLEBIRD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TABLEBIRD_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TABLEBIRD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TABLEBIRD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TABLEBIRD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"TABLEBIRD_PUBSUB_ORDERS_TOPIC" default:"tb-order-events"`
	OrdersSubscription string `envconfig:"TABLEBIRD_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TABLEBIRD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TABLEBIRD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TABLEBIRD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PaymentsConfig struct {
	// AutoConfirmOnPaid drives an order to CONFIRMED when reconciliation
	// lands on PAID while the order is still awaiting confirmation.
	AutoConfirmOnPaid  bool          `envconfig:"TABLEBIRD_PAYMENTS_AUTO_CONFIRM_ON_PAID" default:"true"`
	WebhookEventTTL    time.Duration `envconfig:"TABLEBIRD_PAYMENTS_WEBHOOK_EVENT_TTL" default:"720h"`
	AcceptedGateways   []string      `envconfig:"TABLEBIRD_PAYMENTS_ACCEPTED_GATEWAYS" default:"stripe,razorpay"`
	AllowCashOnDeliver bool          `envconfig:"TABLEBIRD_PAYMENTS_ALLOW_COD" default:"true"`

	// WebhookRateLimit caps deliveries per source IP inside WebhookRateWindow.
	// A limit of 0 disables throttling.
	WebhookRateLimit  int64         `envconfig:"TABLEBIRD_PAYMENTS_WEBHOOK_RATE_LIMIT" default:"120"`
	WebhookRateWindow time.Duration `envconfig:"TABLEBIRD_PAYMENTS_WEBHOOK_RATE_WINDOW" default:"1m"`
}

type OrdersConfig struct {
	NumberPrefix       string `envconfig:"TABLEBIRD_ORDER_NUMBER_PREFIX" default:"ORD"`
	NumberMaxAttempts  int    `envconfig:"TABLEBIRD_ORDER_NUMBER_MAX_ATTEMPTS" default:"5"`
	RequireTableNumber bool   `envconfig:"TABLEBIRD_ORDERS_REQUIRE_TABLE_NUMBER" default:"false"`
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
