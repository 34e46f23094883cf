package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Gateway: GatewayConfig{BaseURL: "http://backend"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"APP_ENV", "REDIS_HOST", "JWT_SECRET", "GATEWAY_BASE_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_AppliesConsoleDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Console.SnapshotTTL != 30*time.Minute || c.Console.AutoCloseDelay != 1500*time.Millisecond {
		t.Fatalf("unexpected console defaults %+v", c.Console)
	}
	if c.Console.ExemptProblemID != "7" || c.Console.LocalTZ != "Asia/Kolkata" {
		t.Fatalf("unexpected console defaults %+v", c.Console)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %s", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_AuditDBOnlyWhenEnabled(t *testing.T) {
	c := validConfig()
	c.DB.Enabled = true
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "DB_HOST") {
		t.Fatalf("expected DB errors when audit db enabled, got %v", err)
	}

	c = validConfig()
	c.DB = DBConfig{Enabled: true, Host: "localhost", Port: 5432, User: "postgres", Name: "console"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_ProductionRequiresSecrets(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected production errors")
	}
	for _, want := range []string{"JWT_ISSUER", "JWT_AUDIENCE", "EVENT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_RejectsUnknownTimeZone(t *testing.T) {
	c := validConfig()
	c.Console.LocalTZ = "Mars/Olympus"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected time zone error")
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("GATEWAY_BASE_URL", "http://backend/api")
	t.Setenv("SNAPSHOT_TTL", "10m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")

	c, err := Load(t.TempDir() + "/missing.env")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.Port != 9090 || c.Redis.Port != 6379 || c.RedisAddr() != "cache:6379" {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.Console.SnapshotTTL != 10*time.Minute || c.Console.AutoCloseDelay != 1500*time.Millisecond {
		t.Fatalf("unexpected console config %+v", c.Console)
	}
	if len(c.HTTP.CORSAllowedOrigins) != 2 || c.HTTP.CORSAllowedOrigins[1] != "http://b.example" {
		t.Fatalf("unexpected origins %v", c.HTTP.CORSAllowedOrigins)
	}
}
