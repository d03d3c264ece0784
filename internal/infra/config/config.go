package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL         string
	HTTPAddr            string
	JWTSecret           string
	TelegramToken       string // Empty disables the bot and push delivery
	AdminTelegramID     int64
	LogLevel            string
	Environment         string
	NotificationTTL     time.Duration
	CronSpecCleanup     string // Deletes expired notifications
	CronSpecRedelivery  string // Retries undelivered pushes
	ShutdownGracePeriod time.Duration
}

// BotEnabled reports whether a Telegram token was configured.
func (c *AppConfig) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.JWTSecret = getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")
	if cfg.BotEnabled() {
		adminIDStr := getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.NotificationTTL = 30 * 24 * time.Hour
	if ttl := getenv("NOTIFICATION_TTL"); ttl != "" {
		cfg.NotificationTTL, err = time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFICATION_TTL: %w", err)
		}
		if cfg.NotificationTTL < 0 {
			return nil, fmt.Errorf("invalid NOTIFICATION_TTL: must not be negative")
		}
	}

	cfg.CronSpecCleanup = getenv("CRON_SPEC_CLEANUP")
	if cfg.CronSpecCleanup == "" {
		cfg.CronSpecCleanup = "0 3 * * *" // Default: 3 AM daily
	}

	cfg.CronSpecRedelivery = getenv("CRON_SPEC_REDELIVERY")
	if cfg.CronSpecRedelivery == "" {
		cfg.CronSpecRedelivery = "*/10 * * * *" // Default: every 10 minutes
	}

	cfg.ShutdownGracePeriod = 15 * time.Second
	if grace := getenv("SHUTDOWN_GRACE_PERIOD"); grace != "" {
		cfg.ShutdownGracePeriod, err = time.ParseDuration(grace)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_GRACE_PERIOD: %w", err)
		}
	}

	return cfg, nil
}
