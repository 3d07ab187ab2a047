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
	JWT          JWTConfig
	Search       SearchConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"DIRECTORY_APP_ENV" required:"true"`
	Port         string `envconfig:"DIRECTORY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DIRECTORY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"DIRECTORY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"DIRECTORY_LOG_WARN_STACK" default:"false"`
	// CORSOrigins extends the built-in origin allowlist, comma separated.
	CORSOrigins []string `envconfig:"DIRECTORY_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"DIRECTORY_DB_DSN"`
	Driver string `envconfig:"DIRECTORY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DIRECTORY_DB_HOST"`
	LegacyPort     int    `envconfig:"DIRECTORY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DIRECTORY_DB_USER"`
	LegacyPassword string `envconfig:"DIRECTORY_DB_PASSWORD"`
	LegacyName     string `envconfig:"DIRECTORY_DB_NAME"`
	LegacySSLMode  string `envconfig:"DIRECTORY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DIRECTORY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DIRECTORY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DIRECTORY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DIRECTORY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DIRECTORY_REDIS_URL"`
	Address      string        `envconfig:"DIRECTORY_REDIS_ADDR"`
	Password     string        `envconfig:"DIRECTORY_REDIS_PASSWORD"`
	DB           int           `envconfig:"DIRECTORY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DIRECTORY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DIRECTORY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIRECTORY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DIRECTORY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DIRECTORY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens issued by the external auth service.
type JWTConfig struct {
	Secret            string `envconfig:"DIRECTORY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DIRECTORY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DIRECTORY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// SearchConfig tunes the public search resolver.
type SearchConfig struct {
	// TopBandSize is how many of the best-rated non-pinned listings get shuffled
	// per request. Zero or one keeps the ordering fully deterministic.
	TopBandSize         int           `envconfig:"DIRECTORY_SEARCH_TOP_BAND_SIZE" default:"0"`
	MaxResults          int           `envconfig:"DIRECTORY_SEARCH_MAX_RESULTS" default:"500"`
	CacheTTL            time.Duration `envconfig:"DIRECTORY_SEARCH_CACHE_TTL" default:"30s"`
	IncludeTestListings bool          `envconfig:"DIRECTORY_SEARCH_INCLUDE_TEST_LISTINGS" default:"false"`
}

type RateLimitConfig struct {
	SubmissionWindow time.Duration `envconfig:"DIRECTORY_RATE_LIMIT_SUBMISSION_WINDOW" default:"10m"`
	SubmissionLimit  int           `envconfig:"DIRECTORY_RATE_LIMIT_SUBMISSION_LIMIT" default:"10"`
	ReviewWindow     time.Duration `envconfig:"DIRECTORY_RATE_LIMIT_REVIEW_WINDOW" default:"1h"`
	ReviewLimit      int           `envconfig:"DIRECTORY_RATE_LIMIT_REVIEW_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DIRECTORY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DIRECTORY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ModerationTopic string `envconfig:"DIRECTORY_PUBSUB_MODERATION_TOPIC" default:"directory-moderation-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DIRECTORY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DIRECTORY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DIRECTORY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"DIRECTORY_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"DIRECTORY_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"DIRECTORY_CRON_LOCK_TTL" default:"1h"`
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
