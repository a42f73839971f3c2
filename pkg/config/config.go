package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Features   FeatureFlagsConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Square     SquareConfig
	Stripe     StripeConfig
	Payments   PaymentsConfig
	Settlement SettlementConfig
	Cycles     CyclesConfig
	Cron       CronConfig
	Outbox     OutboxConfig
	RateLimit  RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	currency, err := enums.ParseCurrency(cfg.Payments.Currency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvPaymentsCurrency, err)
	}
	cfg.Payments.Currency = currency.String()
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SEEDFUND_APP_ENV" required:"true"`
	Port         string   `envconfig:"SEEDFUND_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"SEEDFUND_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SEEDFUND_LOG_WARN_STACK" default:"false"`
	LogFile      string   `envconfig:"SEEDFUND_LOG_FILE"`
	CORSOrigins  []string `envconfig:"SEEDFUND_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SEEDFUND_SERVICE_KIND" default:"api"`
	// MetricsAddr, when set, exposes /metrics from the worker binaries.
	MetricsAddr string `envconfig:"SEEDFUND_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"SEEDFUND_DB_DSN"`
	Driver string `envconfig:"SEEDFUND_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SEEDFUND_DB_HOST"`
	LegacyPort     int    `envconfig:"SEEDFUND_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SEEDFUND_DB_USER"`
	LegacyPassword string `envconfig:"SEEDFUND_DB_PASSWORD"`
	LegacyName     string `envconfig:"SEEDFUND_DB_NAME"`
	LegacySSLMode  string `envconfig:"SEEDFUND_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SEEDFUND_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SEEDFUND_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SEEDFUND_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SEEDFUND_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SEEDFUND_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SEEDFUND_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SEEDFUND_REDIS_ADDR"`
	Password     string        `envconfig:"SEEDFUND_REDIS_PASSWORD"`
	DB           int           `envconfig:"SEEDFUND_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SEEDFUND_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SEEDFUND_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SEEDFUND_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SEEDFUND_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SEEDFUND_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SEEDFUND_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SEEDFUND_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SEEDFUND_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"SEEDFUND_AUTO_MIGRATE" default:"false"`
	PublishNotifies bool `envconfig:"SEEDFUND_FEATURE_PUBLISH_NOTIFICATIONS" default:"true"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SEEDFUND_GCP_PROJECT_ID" required:"true"`
	// CredentialsJSON beats CredentialsFile; with neither, ADC applies.
	CredentialsJSON string `envconfig:"SEEDFUND_GCP_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"SEEDFUND_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic  string `envconfig:"SEEDFUND_PUBSUB_NOTIFICATION_TOPIC" default:"sf-notification-events"`
	DomainTopic        string `envconfig:"SEEDFUND_PUBSUB_DOMAIN_TOPIC" default:"sf-domain-events"`
	DomainSubscription string `envconfig:"SEEDFUND_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"SEEDFUND_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"SEEDFUND_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"SEEDFUND_SQUARE_LOCATION_ID"`
	// WebhookURL is the subscription URL registered with Square; it is part
	// of the signed payload.
	WebhookURL string `envconfig:"SEEDFUND_SQUARE_WEBHOOK_URL"`
	Env           string `envconfig:"SEEDFUND_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type StripeConfig struct {
	APIKey string `envconfig:"SEEDFUND_STRIPE_API_KEY"`
	Secret string `envconfig:"SEEDFUND_STRIPE_SECRET"`
	Env    string `envconfig:"SEEDFUND_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PaymentsConfig selects the charge provider and the settlement payment window.
type PaymentsConfig struct {
	Provider       string        `envconfig:"SEEDFUND_PAYMENTS_PROVIDER" default:"square"`
	Currency       string        `envconfig:"SEEDFUND_PAYMENTS_CURRENCY" default:"USD"`
	PaymentWindow  time.Duration `envconfig:"SEEDFUND_PAYMENTS_WINDOW" default:"72h"`
	PollBatchSize  int           `envconfig:"SEEDFUND_PAYMENTS_POLL_BATCH_SIZE" default:"100"`
	WebhookDedupTT time.Duration `envconfig:"SEEDFUND_PAYMENTS_WEBHOOK_DEDUP_TTL" default:"720h"`
}

// SettlementConfig carries the split policy rates as decimal strings (0.05 = 5%).
type SettlementConfig struct {
	RemittanceRate      string `envconfig:"SEEDFUND_SPLIT_REMITTANCE_RATE" default:"0.10"`
	SpenderRate         string `envconfig:"SEEDFUND_SPLIT_SPENDER_RATE" default:"0.05"`
	FundRate            string `envconfig:"SEEDFUND_SPLIT_FUND_RATE" default:"0.25"`
	PlatformRate        string `envconfig:"SEEDFUND_SPLIT_PLATFORM_RATE" default:"0.25"`
	CreatorPoolFraction string `envconfig:"SEEDFUND_FUND_CREATOR_POOL_FRACTION" default:"0.50"`
	RemittanceTolerance string `envconfig:"SEEDFUND_SPLIT_REMITTANCE_TOLERANCE" default:"1"`
}

// Rates parses the configured decimal strings.
func (s SettlementConfig) Rates() (SettlementRates, error) {
	var (
		out SettlementRates
		err error
	)
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{EnvSplitRemittanceRate, s.RemittanceRate, &out.RemittanceRate},
		{EnvSplitSpenderRate, s.SpenderRate, &out.SpenderRate},
		{EnvSplitFundRate, s.FundRate, &out.FundRate},
		{EnvSplitPlatformRate, s.PlatformRate, &out.PlatformRate},
		{EnvFundCreatorPoolFraction, s.CreatorPoolFraction, &out.CreatorPoolFraction},
		{EnvSplitRemittanceTolerance, s.RemittanceTolerance, &out.RemittanceTolerance},
	}
	for _, f := range fields {
		*f.dst, err = decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return SettlementRates{}, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return out, nil
}

func (s SettlementConfig) validate() error {
	_, err := s.Rates()
	return err
}

// SettlementRates are the parsed SettlementConfig values.
type SettlementRates struct {
	RemittanceRate      decimal.Decimal
	SpenderRate         decimal.Decimal
	FundRate            decimal.Decimal
	PlatformRate        decimal.Decimal
	CreatorPoolFraction decimal.Decimal
	RemittanceTolerance decimal.Decimal
}

type CyclesConfig struct {
	CycleDays    int `envconfig:"SEEDFUND_CYCLE_DAYS" default:"15"`
	SeasonMonths int `envconfig:"SEEDFUND_SEASON_MONTHS" default:"3"`
}

type CronConfig struct {
	Interval  time.Duration `envconfig:"SEEDFUND_CRON_INTERVAL" default:"15m"`
	LockTTL   time.Duration `envconfig:"SEEDFUND_CRON_LOCK_TTL" default:"30m"`
	Retention time.Duration `envconfig:"SEEDFUND_CRON_RETENTION" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SEEDFUND_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SEEDFUND_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SEEDFUND_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type RateLimitConfig struct {
	WebhookPerMinute float64       `envconfig:"SEEDFUND_RATE_LIMIT_WEBHOOK_PER_MINUTE" default:"600"`
	WebhookBurst     int           `envconfig:"SEEDFUND_RATE_LIMIT_WEBHOOK_BURST" default:"50"`
	ActionWindow     time.Duration `envconfig:"SEEDFUND_RATE_LIMIT_ACTION_WINDOW" default:"1m"`
	ActionIPLimit    int           `envconfig:"SEEDFUND_RATE_LIMIT_ACTION_IP_LIMIT" default:"60"`
	ActionUserLimit  int           `envconfig:"SEEDFUND_RATE_LIMIT_ACTION_USER_LIMIT" default:"20"`
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
