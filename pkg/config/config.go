// Package config loads runtime settings from KARTUPINTAR_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Ledger        LedgerConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

// Load reads the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(),
		cfg.Redis.validate(),
		cfg.Ledger.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KARTUPINTAR_APP_ENV" required:"true"`
	Port         string `envconfig:"KARTUPINTAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KARTUPINTAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KARTUPINTAR_LOG_WARN_STACK" default:"false"`
	// Comma separated. Empty allows the local dev origins only.
	CORSOrigins []string `envconfig:"KARTUPINTAR_CORS_ORIGINS"`
	// IANA zone used for "today" on the dashboard.
	Timezone string `envconfig:"KARTUPINTAR_TIMEZONE" default:"Asia/Jakarta"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

type ServiceConfig struct {
	Kind string `envconfig:"KARTUPINTAR_SERVICE_KIND" default:"api"`
}

// RedisConfig accepts either a redis:// URL or a bare address. Pool and
// timeout settings fill whatever the URL leaves out.
type RedisConfig struct {
	URL          string        `envconfig:"KARTUPINTAR_REDIS_URL"`
	Address      string        `envconfig:"KARTUPINTAR_REDIS_ADDR"`
	Password     string        `envconfig:"KARTUPINTAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"KARTUPINTAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KARTUPINTAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KARTUPINTAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KARTUPINTAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KARTUPINTAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KARTUPINTAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) validate() error {
	if r.URL == "" && r.Address == "" {
		return fmt.Errorf("either %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return nil
}

type JWTConfig struct {
	Secret                 string `envconfig:"KARTUPINTAR_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KARTUPINTAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"KARTUPINTAR_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"KARTUPINTAR_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL is zero when unset or negative.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(max(j.RefreshTokenTTLMinutes, 0)) * time.Minute
}

// PasswordConfig tunes argon2id. Out-of-range values are clamped by the
// hasher.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KARTUPINTAR_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KARTUPINTAR_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KARTUPINTAR_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KARTUPINTAR_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KARTUPINTAR_ARGON_KEY_LEN" default:"32"`
}

// AuthRateLimitConfig budgets login attempts. A zero window turns the
// limiter off.
type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KARTUPINTAR_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"KARTUPINTAR_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"KARTUPINTAR_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

// RateLimitConfig budgets authenticated API traffic per operator.
type RateLimitConfig struct {
	Window      time.Duration `envconfig:"KARTUPINTAR_RATE_LIMIT_WINDOW" default:"1m"`
	PerOperator int           `envconfig:"KARTUPINTAR_RATE_LIMIT_PER_OPERATOR" default:"300"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KARTUPINTAR_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig holds the wallet rules applied by the ledger engine.
type LedgerConfig struct {
	MaxTopUp           int64   `envconfig:"KARTUPINTAR_LEDGER_MAX_TOPUP" default:"5000000"`
	CardIDPrefix       string  `envconfig:"KARTUPINTAR_LEDGER_CARD_ID_PREFIX" default:"KP"`
	MaxIDAttempts      int     `envconfig:"KARTUPINTAR_LEDGER_MAX_ID_ATTEMPTS" default:"20"`
	MaxConflictRetries int     `envconfig:"KARTUPINTAR_LEDGER_MAX_CONFLICT_RETRIES" default:"3"`
	POSName            string  `envconfig:"KARTUPINTAR_LEDGER_POS_NAME" default:"Kantin"`
	POSLatitude        float64 `envconfig:"KARTUPINTAR_LEDGER_POS_LAT" default:"0"`
	POSLongitude       float64 `envconfig:"KARTUPINTAR_LEDGER_POS_LNG" default:"0"`
}

func (l LedgerConfig) validate() error {
	var err error
	if l.MaxTopUp <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvLedgerMaxTopUp))
	}
	if strings.TrimSpace(l.CardIDPrefix) == "" {
		err = multierr.Append(err, fmt.Errorf("%s must not be empty", EnvLedgerCardIDPrefix))
	}
	if l.MaxConflictRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvLedgerMaxConflictRetry))
	}
	return err
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KARTUPINTAR_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KARTUPINTAR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KARTUPINTAR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"KARTUPINTAR_PUBSUB_LEDGER_TOPIC" default:"kp-ledger-events"`
}

// OutboxConfig drives the relay. Rows reaching MaxAttempts are parked and
// swept after RetentionDays.
type OutboxConfig struct {
	BatchSize      int `envconfig:"KARTUPINTAR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KARTUPINTAR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KARTUPINTAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"KARTUPINTAR_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Schedule      string        `envconfig:"KARTUPINTAR_CRON_SCHEDULE" default:"@every 15m"`
	LockTTL       time.Duration `envconfig:"KARTUPINTAR_CRON_LOCK_TTL" default:"10m"`
	ReconcileSize int           `envconfig:"KARTUPINTAR_CRON_RECONCILE_BATCH" default:"500"`
}
