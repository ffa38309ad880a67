/*
Package configs loads the relay's settings from environment variables.

Every value has a development default; outside development the secrets and the
database connection string are mandatory.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment   string
	Port          int
	PowDifficulty int

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string
	AdminUsername  string

	// Chat Settings
	DefaultAvatar string
	DefaultMOTD   string
	HistorySize   int
	MOTDDelay     time.Duration

	// Persistence Settings
	DatabaseDSN   string
	MongoDatabase string
	RedisURL      string
	RedisChannel  string

	// S3 Storage Settings (all empty disables uploads)
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// IsDevelopment reports whether the process runs with development defaults.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// UploadsEnabled reports whether S3 settings were provided.
func (c *AppConfig) UploadsEnabled() bool {
	return c.S3BucketName != ""
}

// LoadConfig reads and validates the configuration from the environment.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	cfg.Environment = getEnv("ENVIRONMENT", "development")

	if cfg.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	if cfg.PowDifficulty, err = getEnvInt("POW_DIFFICULTY", 0); err != nil {
		return nil, err
	}
	if cfg.PowDifficulty < 0 || cfg.PowDifficulty > 8 {
		return nil, fmt.Errorf("POW_DIFFICULTY must be between 0 and 8, got %d", cfg.PowDifficulty)
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = parseList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.JWTSecret = "your_default_insecure_secret_key_change_me"
	}

	cfg.AdminUsername = strings.TrimSpace(getEnv("ADMIN_USERNAME", "admin"))

	// --- Chat Settings ---
	cfg.DefaultAvatar = getEnv("DEFAULT_AVATAR", "/img/default-avatar.png")
	cfg.DefaultMOTD = getEnv("DEFAULT_MOTD", "Welcome to the chat!")

	if cfg.HistorySize, err = getEnvInt("HISTORY_SIZE", 20); err != nil {
		return nil, err
	}
	if cfg.HistorySize < 1 {
		return nil, fmt.Errorf("HISTORY_SIZE must be positive, got %d", cfg.HistorySize)
	}

	delayMs, err := getEnvInt("MOTD_DELAY_MS", 1000)
	if err != nil {
		return nil, err
	}
	if delayMs < 0 {
		return nil, fmt.Errorf("MOTD_DELAY_MS must not be negative, got %d", delayMs)
	}
	cfg.MOTDDelay = time.Duration(delayMs) * time.Millisecond

	// --- Persistence Settings ---
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	if cfg.DatabaseDSN == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
	}
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", "chatrelay")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RedisChannel = getEnv("REDIS_CHANNEL", "chatrelay:events")

	// --- S3 Storage Settings ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

	if err := cfg.validateS3(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateS3 requires the four S3 settings to be set together or not at all.
func (c *AppConfig) validateS3() error {
	settings := map[string]string{
		"S3_BUCKET_NAME":       c.S3BucketName,
		"S3_ENDPOINT":          c.S3Endpoint,
		"S3_ACCESS_KEY_ID":     c.S3AccessKeyID,
		"S3_SECRET_ACCESS_KEY": c.S3SecretAccessKey,
	}

	var missing []string
	for name, value := range settings {
		if value == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 && len(missing) < len(settings) {
		return fmt.Errorf("incomplete S3 configuration, missing: %s", strings.Join(missing, ", "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return parsed, nil
}

func parseList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
