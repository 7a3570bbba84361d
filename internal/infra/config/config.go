package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL        string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	HTTPListenAddr     string
	JWTSecret          string
	LogLevel           string
	Environment        string
	CronSpecAlertScan  string // daily scan schedule
	OverrideEmail      string // optional address always added to recipient sets
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string
	FCMCredentialsFile string // optional; push channel disabled when empty
	RedisAddr          string // optional; directory cache disabled when empty
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.DBMaxOpenConns = 25
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %q", raw)
		}
		cfg.DBMaxOpenConns = n
	}

	cfg.DBMaxIdleConns = 5
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %q", raw)
		}
		cfg.DBMaxIdleConns = n
	}

	cfg.DBConnMaxLifetime = 5 * time.Minute
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %q", raw)
		}
		cfg.DBConnMaxLifetime = d
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is not set")
	}

	portStr := os.Getenv("SMTP_PORT")
	if portStr == "" {
		portStr = "587"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTPPort = port

	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")

	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is not set")
	}

	cfg.HTTPListenAddr = os.Getenv("HTTP_LISTEN_ADDR")
	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecAlertScan = os.Getenv("CRON_SPEC_ALERT_SCAN")
	if cfg.CronSpecAlertScan == "" {
		cfg.CronSpecAlertScan = "0 8 * * *" // Default: 8:00 AM daily
	}

	cfg.OverrideEmail = os.Getenv("ALERT_OVERRIDE_EMAIL")
	cfg.FCMCredentialsFile = os.Getenv("FCM_CREDENTIALS_FILE")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	return cfg, nil
}
