package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration required by the console processes.
// Values come from the environment, optionally seeded from a .env file.
// No business logic should read raw environment variables.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Gateway GatewayConfig
	Console ConsoleConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type HTTPConfig struct {
	CORSAllowedOrigins []string
}

// DBConfig is the audit database. It is only required when Enabled.
type DBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// GatewayConfig points at the console backend (contacts, form-details).
type GatewayConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type ConsoleConfig struct {
	SnapshotTTL     time.Duration
	AutoCloseDelay  time.Duration
	ExemptProblemID string
	LocalTZ         string
	// EventSecret guards the telephony ingest endpoint when set.
	EventSecret string
}

var defaults = map[string]any{
	"APP_ENV":              "",
	"APP_PORT":             8080,
	"CORS_ALLOWED_ORIGINS": "",
	"AUDIT_DB_ENABLED":     false,
	"DB_HOST":              "",
	"DB_PORT":              5432,
	"DB_USER":              "",
	"DB_PASSWORD":          "",
	"DB_NAME":              "",
	"DB_SSLMODE":           "",
	"REDIS_HOST":           "",
	"REDIS_PORT":           6379,
	"JWT_SECRET":           "",
	"JWT_ISSUER":           "",
	"JWT_AUDIENCE":         "",
	"JWT_ACCESS_TTL":       "0s",
	"JWT_REFRESH_TTL":      "0s",
	"GATEWAY_BASE_URL":     "",
	"GATEWAY_TOKEN":        "",
	"GATEWAY_TIMEOUT":      "15s",
	"SNAPSHOT_TTL":         "30m",
	"AUTO_CLOSE_DELAY":     "1500ms",
	"EXEMPT_PROBLEM_ID":    "7",
	"LOCAL_TZ":             "Asia/Kolkata",
	"EVENT_SECRET":         "",
}

// Load reads configuration from envFile (ignored when missing) and the
// environment, which wins.
func Load(envFile string) (Config, error) {
	v := viper.New()
	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	c := FromViper(v)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func FromViper(v *viper.Viper) Config {
	var c Config

	c.App.Env = strings.TrimSpace(v.GetString("APP_ENV"))
	c.App.Port = v.GetInt("APP_PORT")
	c.HTTP.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	c.DB.Enabled = v.GetBool("AUDIT_DB_ENABLED")
	c.DB.Host = strings.TrimSpace(v.GetString("DB_HOST"))
	c.DB.Port = v.GetInt("DB_PORT")
	c.DB.User = strings.TrimSpace(v.GetString("DB_USER"))
	c.DB.Password = v.GetString("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(v.GetString("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(v.GetString("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(v.GetString("REDIS_HOST"))
	c.Redis.Port = v.GetInt("REDIS_PORT")

	c.Auth.JWTSecret = v.GetString("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(v.GetString("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(v.GetString("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = v.GetDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = v.GetDuration("JWT_REFRESH_TTL")

	c.Gateway.BaseURL = strings.TrimSpace(v.GetString("GATEWAY_BASE_URL"))
	c.Gateway.Token = v.GetString("GATEWAY_TOKEN")
	c.Gateway.Timeout = v.GetDuration("GATEWAY_TIMEOUT")

	c.Console.SnapshotTTL = v.GetDuration("SNAPSHOT_TTL")
	c.Console.AutoCloseDelay = v.GetDuration("AUTO_CLOSE_DELAY")
	c.Console.ExemptProblemID = strings.TrimSpace(v.GetString("EXEMPT_PROBLEM_ID"))
	c.Console.LocalTZ = strings.TrimSpace(v.GetString("LOCAL_TZ"))
	c.Console.EventSecret = v.GetString("EVENT_SECRET")
	return c
}

// Validate applies environment-dependent defaults and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Enabled {
		errs = append(errs, c.validateDB()...)
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Console.EventSecret == "" {
			errs = append(errs, errors.New("EVENT_SECRET is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 12 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("GATEWAY_BASE_URL is required"))
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 15 * time.Second
	}

	if c.Console.SnapshotTTL <= 0 {
		c.Console.SnapshotTTL = 30 * time.Minute
	}
	if c.Console.AutoCloseDelay <= 0 {
		c.Console.AutoCloseDelay = 1500 * time.Millisecond
	}
	if c.Console.ExemptProblemID == "" {
		c.Console.ExemptProblemID = "7"
	}
	if c.Console.LocalTZ == "" {
		c.Console.LocalTZ = "Asia/Kolkata"
	}
	if _, err := time.LoadLocation(c.Console.LocalTZ); err != nil {
		errs = append(errs, fmt.Errorf("LOCAL_TZ is not a known time zone: %q", c.Console.LocalTZ))
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Location is the agent-local zone used for call timestamps.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Console.LocalTZ)
	if err != nil {
		return time.Local
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
