package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "dedupe_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("ADMIN_EMAILS", " Admin@Example.com , ,ops@example.com")
	t.Setenv("SCORING_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "mongodb://localhost:27017/testdb", cfg.MongoDB.URI)
	require.Equal(t, "dedupe_test", cfg.MongoDB.Database)
	require.Equal(t, "localhost", cfg.Redis.Host)
	require.Equal(t, []string{"Admin@Example.com", "ops@example.com"}, cfg.Admin.Emails)
	require.Equal(t, time.UTC, cfg.Scoring.Location)
	require.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenTTL)
	require.EqualValues(t, 10<<20, cfg.Upload.MaxBytes)
}

func TestLoadConfig_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("SCORING_TIMEZONE", "UTC")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_InvalidTimezone(t *testing.T) {
	t.Setenv("SCORING_TIMEZONE", "Not/AZone")
	_, err := LoadConfig()
	require.Error(t, err)
}
