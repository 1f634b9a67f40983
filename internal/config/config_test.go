package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 180, cfg.MaxIntervalDays)
	assert.Equal(t, 8, cfg.NotificationStartHour)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"DB_TYPE":                 "Postgres",
		"DB_DSN":                  "postgres://localhost/study",
		"TIMEZONE":                "America/Sao_Paulo",
		"ENABLE_SCHEDULER":        "false",
		"NOTIFICATION_START_HOUR": "6",
		"REVIEW_MAX_INTERVAL":     "90",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, "America/Sao_Paulo", cfg.Location.String())
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, 6, cfg.NotificationStartHour)
	assert.Equal(t, 90, cfg.MaxIntervalDays)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"driver":       {"DB_TYPE": "mysql"},
		"postgres dsn": {"DB_TYPE": "postgres"},
		"hour":         {"NOTIFICATION_END_HOUR": "25"},
		"interval":     {"REVIEW_MAX_INTERVAL": "0"},
		"timezone":     {"TIMEZONE": "Mars/Olympus"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(env))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_MODE=prod\n"), 0o600))
	t.Setenv("LOG_MODE", "")
	os.Unsetenv("LOG_MODE")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.LogMode)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
