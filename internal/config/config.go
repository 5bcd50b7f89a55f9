// Package config loads the engine configuration from environment variables.
// envconfig maps variables onto the Config struct; a .env file is honoured by main.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverBadger   = "badger"
)

// Config holds every setting of the engine.
type Config struct {
	// --- Storage ---
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`

	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"civic"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"civic_engagement"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// Embedded store, used for local runs and tests.
	BadgerPath     string `envconfig:"BADGER_PATH" default:"./data/engine"`
	BadgerInMemory bool   `envconfig:"BADGER_IN_MEMORY" default:"false"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- HTTP ---
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPCORSOrigins []string      `envconfig:"HTTP_CORS_ORIGINS" default:"*"`
	HTTPShutdown    time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`

	// --- Admin ---
	// argon2id hash of the operator token, see scripts/generate_hash.go
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Scoring ---
	LeaderboardMaxLimit int `envconfig:"LEADERBOARD_MAX_LIMIT" default:"100"`

	// --- Moderation ---
	ModerationSchedule        string  `envconfig:"MODERATION_SCHEDULE" default:"0 3 * * *"`
	ModerationDormancyDays    int     `envconfig:"MODERATION_DORMANCY_DAYS" default:"30"`
	ModerationMinVotes        int64   `envconfig:"MODERATION_MIN_VOTES" default:"10"`
	ModerationDownvoteRatio   float64 `envconfig:"MODERATION_DOWNVOTE_RATIO" default:"0.6"`
	ModerationEscalationVotes int64   `envconfig:"MODERATION_ESCALATION_MIN_UPVOTES" default:"100"`
	ModerationUpvoteRatio     float64 `envconfig:"MODERATION_UPVOTE_RATIO" default:"0.7"`

	// --- Ops alerts (optional) ---
	TelegramAlertToken  string `envconfig:"TELEGRAM_ALERT_TOKEN"`
	TelegramAlertChatID int64  `envconfig:"TELEGRAM_ALERT_CHAT_ID"`

	// --- Feature Flags ---
	FeatureModerationEnabled bool `envconfig:"FEATURE_MODERATION_ENABLED" default:"true"`
	FeatureAlertsEnabled     bool `envconfig:"FEATURE_ALERTS_ENABLED" default:"false"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// DormancyPeriod returns the idle time after which a pending petition is archived.
func (c *Config) DormancyPeriod() time.Duration {
	return time.Duration(c.ModerationDormancyDays) * 24 * time.Hour
}

// AlertsEnabled reports whether sweep summaries should go to the operator chat.
func (c *Config) AlertsEnabled() bool {
	return c.FeatureAlertsEnabled && c.TelegramAlertToken != "" && c.TelegramAlertChatID != 0
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for STORE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StoreDriverBadger:
		if !c.BadgerInMemory && strings.TrimSpace(c.BadgerPath) == "" {
			return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY=true")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.LeaderboardMaxLimit <= 0 {
		return fmt.Errorf("LEADERBOARD_MAX_LIMIT must be > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ModerationDormancyDays <= 0 {
		return fmt.Errorf("MODERATION_DORMANCY_DAYS must be > 0")
	}
	if c.ModerationDownvoteRatio <= 0 || c.ModerationDownvoteRatio > 1 ||
		c.ModerationUpvoteRatio <= 0 || c.ModerationUpvoteRatio > 1 {
		return fmt.Errorf("moderation ratios must be in (0, 1]")
	}
	return nil
}

// Load reads the environment and fills Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
