package configs

import (
	"strings"
	"testing"
	"time"
)

var configEnv = []string{
	"ENVIRONMENT", "PORT", "POW_DIFFICULTY", "ALLOWED_ORIGINS", "JWT_SECRET", "ADMIN_USERNAME",
	"DEFAULT_AVATAR", "DEFAULT_MOTD", "HISTORY_SIZE", "MOTD_DELAY_MS", "DATABASE_URL",
	"MONGO_DATABASE", "REDIS_URL", "REDIS_CHANNEL", "S3_BUCKET_NAME", "S3_ENDPOINT",
	"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.IsDevelopment() || cfg.Port != 8080 {
		t.Errorf("unexpected defaults: env=%s port=%d", cfg.Environment, cfg.Port)
	}
	if cfg.HistorySize != 20 || cfg.MOTDDelay != time.Second {
		t.Errorf("chat defaults: history=%d delay=%s", cfg.HistorySize, cfg.MOTDDelay)
	}
	if cfg.AdminUsername != "admin" || cfg.JWTSecret == "" {
		t.Errorf("security defaults: admin=%q secret empty=%v", cfg.AdminUsername, cfg.JWTSecret == "")
	}
	if cfg.DatabaseDSN != "" || cfg.UploadsEnabled() {
		t.Error("development defaults should use the memory store and disable uploads")
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigProductionRequirements(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}

	t.Setenv("JWT_SECRET", "s3cret")
	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}

	t.Setenv("DATABASE_URL", "mongodb://localhost:27017")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"PORT":           "80",
		"HISTORY_SIZE":   "0",
		"MOTD_DELAY_MS":  "-5",
		"POW_DIFFICULTY": "abc",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("%s=%s accepted", key, value)
			}
		})
	}
}

func TestLoadConfigPartialS3(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET_NAME", "bucket")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "S3_ENDPOINT") {
		t.Fatalf("expected incomplete S3 error, got %v", err)
	}
}
