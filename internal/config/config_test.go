package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "badger")
	t.Setenv("BADGER_IN_MEMORY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30, cfg.ModerationDormancyDays)
	assert.Equal(t, 30*24*time.Hour, cfg.DormancyPeriod())
	assert.Equal(t, int64(10), cfg.ModerationMinVotes)
	assert.InDelta(t, 0.6, cfg.ModerationDownvoteRatio, 1e-9)
	assert.Equal(t, int64(100), cfg.ModerationEscalationVotes)
	assert.InDelta(t, 0.7, cfg.ModerationUpvoteRatio, 1e-9)
	assert.Equal(t, []string{"*"}, cfg.HTTPCORSOrigins)
	assert.False(t, cfg.AlertsEnabled())
}

func TestLoadPostgresRequiresPassword(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{StoreDriver: "mongo"}
	require.Error(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: 5433,
		DBName: "civic", DBSSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/civic?sslmode=require", cfg.DatabaseDSN())
}

func TestAlertsEnabledNeedsTokenAndChat(t *testing.T) {
	cfg := &Config{FeatureAlertsEnabled: true, TelegramAlertToken: "t"}
	assert.False(t, cfg.AlertsEnabled())
	cfg.TelegramAlertChatID = 42
	assert.True(t, cfg.AlertsEnabled())
}
