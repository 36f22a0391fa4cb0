package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Stripe   StripeConfig
	Tracker  TrackerConfig
	Watcher  WatcherConfig
	Products ProductsConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	JwtSecret          string
	AdminNotifyEmail   string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host          string
	Port          int
	Email         string
	Password      string
	Bcc           string
	TestRecipient string
	MinInterval   time.Duration
}

type StripeConfig struct {
	SecretKey    string
	PollInterval time.Duration
	SnapshotPath string
}

type TrackerConfig struct {
	Store      string // "file", "gorm" or "memory"
	LogPath    string
	ExportPath string
	RedisURL   string
	LockKey    string
	LockTTL    time.Duration
	LockWait   time.Duration
}

type WatcherConfig struct {
	Enabled  bool
	Interval time.Duration
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

type ProductsConfig struct {
	BaseURL     string
	DefaultLink string
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			AdminNotifyEmail:   getEnv("ADMIN_NOTIFY_EMAIL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:          getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:          getEnvAsInt("SMTP_PORT", 587),
			Email:         getEnv("EMAIL_USER", ""),
			Password:      getEnv("EMAIL_PASS", ""),
			Bcc:           getEnv("EMAIL_BCC", ""),
			TestRecipient: getEnv("TEST_EMAIL", ""),
			MinInterval:   time.Duration(getEnvAsInt("EMAIL_RATE_LIMIT", 2000)) * time.Millisecond,
		},
		Stripe: StripeConfig{
			SecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
			PollInterval: getEnvAsDuration("STRIPE_POLL_INTERVAL", 5*time.Minute),
			SnapshotPath: getEnv("STRIPE_SNAPSHOT_PATH", "stripe/subscriptions.csv"),
		},
		Tracker: TrackerConfig{
			Store:      getEnv("TRACKER_STORE", "file"),
			LogPath:    getEnv("TRACKER_LOG_PATH", "data/subscription_emails_log.json"),
			ExportPath: getEnv("TRACKER_EXPORT_PATH", "exports/subscription_emails_sent.csv"),
			RedisURL:   getEnv("REDIS_URL", ""),
			LockKey:    getEnv("TRACKER_LOCK_KEY", "subscription-tracker"),
			LockTTL:    getEnvAsDuration("TRACKER_LOCK_TTL", 2*time.Minute),
			LockWait:   getEnvAsDuration("TRACKER_LOCK_WAIT", 10*time.Second),
		},
		Watcher: WatcherConfig{
			Enabled:  getEnvAsBool("CSV_WATCHER_ENABLED", true),
			Interval: getEnvAsDuration("CSV_WATCHER_INTERVAL", 5*time.Second),
		},
		Products: ProductsConfig{
			BaseURL:     getEnv("PRODUCT_BASE_URL", ""),
			DefaultLink: getEnv("PRODUCT_DEFAULT_LINK", ""),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
