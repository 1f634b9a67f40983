package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the configuration of the study service
type Config struct {
	// Database driver: "sqlite" or "postgres"
	DBType string
	// Connection string; for sqlite a file path, empty means DataDir/study.db
	DBDSN string
	// Directory for the sqlite file
	DataDir string
	// Location used to derive "today" and day boundaries of sessions
	Location *time.Location
	// "dev" or "prod"
	LogMode string
	// Optional .xlsx or .csv topic catalogue imported at startup
	CatalogFile string
	// Telegram token for reminders; reminders are disabled when empty
	TelegramToken string
	// Whether the hourly reminder job runs
	SchedulerEnabled bool
	// Reminders are only sent between these hours (inclusive)
	NotificationStartHour int
	NotificationEndHour   int
	// Address of the Prometheus listener; empty disables it
	MetricsAddr string
	// Upper bound of a review interval in days
	MaxIntervalDays int
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DBType:                "sqlite",
		DataDir:               "data",
		Location:              time.UTC,
		LogMode:               "dev",
		SchedulerEnabled:      true,
		NotificationStartHour: 8,
		NotificationEndHour:   22,
		MaxIntervalDays:       180,
	}
}

// Load reads an optional .env file and overlays environment variables on the defaults
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %v", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a configuration from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	if v := getenv("DB_TYPE"); v != "" {
		cfg.DBType = strings.ToLower(v)
	}
	if cfg.DBType != "sqlite" && cfg.DBType != "postgres" {
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.DBType)
	}
	cfg.DBDSN = getenv("DB_DSN")
	if cfg.DBType == "postgres" && cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required for postgres")
	}
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %v", err)
		}
		cfg.Location = loc
	}
	if v := getenv("LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	cfg.CatalogFile = getenv("CATALOG_FILE")
	cfg.TelegramToken = getenv("TELEGRAM_BOT_TOKEN")
	cfg.SchedulerEnabled = getenv("ENABLE_SCHEDULER") != "false"
	cfg.MetricsAddr = getenv("METRICS_ADDR")

	var err error
	if cfg.NotificationStartHour, err = hourFromEnv(getenv, "NOTIFICATION_START_HOUR", cfg.NotificationStartHour); err != nil {
		return nil, err
	}
	if cfg.NotificationEndHour, err = hourFromEnv(getenv, "NOTIFICATION_END_HOUR", cfg.NotificationEndHour); err != nil {
		return nil, err
	}
	if v := getenv("REVIEW_MAX_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid REVIEW_MAX_INTERVAL %q", v)
		}
		cfg.MaxIntervalDays = n
	}

	return cfg, nil
}

func hourFromEnv(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	h, err := strconv.Atoi(v)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return h, nil
}
