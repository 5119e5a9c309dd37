package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/spf13/viper"
)

/* Config is read from an optional .env file (TOML) and overridden by environment variables.
 * Every key has a default so AutomaticEnv can see it during Unmarshal.
 */

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// maxScanLimit mirrors capture.MaxScanLimit; a page needs one extra row
const maxScanLimit = 1000

type Config struct {
	Port      string `mapstructure:"PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	PostgresHost               string `mapstructure:"POSTGRES_HOST"`
	PostgresPort               int    `mapstructure:"POSTGRES_PORT"`
	PostgresUser               string `mapstructure:"POSTGRES_USER"`
	PostgresPassword           string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresDB                 string `mapstructure:"POSTGRES_DB"`
	PostgresSSLMode            string `mapstructure:"POSTGRES_SSLMODE"`
	PostgresMaxOpenConns       int    `mapstructure:"POSTGRES_MAX_OPEN_CONNS"`
	PostgresMaxIdleConns       int    `mapstructure:"POSTGRES_MAX_IDLE_CONNS"`
	PostgresConnMaxLifeMinutes int    `mapstructure:"POSTGRES_CONN_MAX_LIFE_MINUTES"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	PageSize          int      `mapstructure:"PAGE_SIZE"`
	MaxPageSize       int      `mapstructure:"MAX_PAGE_SIZE"`
	MaxBodyBytes      int64    `mapstructure:"MAX_BODY_BYTES"`
	CaptureStatusCode int      `mapstructure:"CAPTURE_STATUS_CODE"`
	SourcesFile       string   `mapstructure:"SOURCES_FILE"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`

	GeminiAPIKey            string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel             string `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL           string `mapstructure:"GEMINI_BASE_URL"`
	SynthesisTimeoutSeconds int    `mapstructure:"SYNTHESIS_TIMEOUT_SECONDS"`
	SynthesisLanguage       string `mapstructure:"SYNTHESIS_LANGUAGE"`
	SynthesisRatePerMinute  int    `mapstructure:"SYNTHESIS_RATE_PER_MINUTE"`
}

var defaults = map[string]any{
	"PORT":                           "3333",
	"LOG_LEVEL":                      "info",
	"LOG_FORMAT":                     "json",
	"STORE_DRIVER":                   DriverSQLite,
	"SQLITE_PATH":                    "webhooks.db",
	"POSTGRES_HOST":                  "",
	"POSTGRES_PORT":                  5432,
	"POSTGRES_USER":                  "",
	"POSTGRES_PASSWORD":              "",
	"POSTGRES_DB":                    "",
	"POSTGRES_SSLMODE":               "disable",
	"POSTGRES_MAX_OPEN_CONNS":        25,
	"POSTGRES_MAX_IDLE_CONNS":        5,
	"POSTGRES_CONN_MAX_LIFE_MINUTES": 5,
	"REDIS_ADDR":                     "localhost:6379",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"PAGE_SIZE":                      20,
	"MAX_PAGE_SIZE":                  100,
	"MAX_BODY_BYTES":                 1 << 20,
	"CAPTURE_STATUS_CODE":            200,
	"SOURCES_FILE":                   "",
	"CORS_ORIGINS":                   []string{"http://localhost:5173"},
	"GEMINI_API_KEY":                 "",
	"GEMINI_MODEL":                   "gemini-2.5-flash",
	"GEMINI_BASE_URL":                "https://generativelanguage.googleapis.com",
	"SYNTHESIS_TIMEOUT_SECONDS":      60,
	"SYNTHESIS_LANGUAGE":             "TypeScript",
	"SYNTHESIS_RATE_PER_MINUTE":      10,
}

// GetConfig loads .env from the working directory, if present
func GetConfig() (*Config, error) {
	return Load("")
}

// Load reads the given TOML file (or .env in the working directory when path is empty),
// applies environment overrides and validates the result. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".env")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Validate reports the first inconsistent setting
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.StoreDriver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_USER and POSTGRES_DB are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.MaxPageSize < 1 || c.MaxPageSize >= maxScanLimit {
		return fmt.Errorf("MAX_PAGE_SIZE must be between 1 and %d (got %d)", maxScanLimit-1, c.MaxPageSize)
	}
	if c.PageSize < 1 || c.PageSize > c.MaxPageSize {
		return fmt.Errorf("PAGE_SIZE must be between 1 and MAX_PAGE_SIZE (got %d)", c.PageSize)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive (got %d)", c.MaxBodyBytes)
	}
	if c.CaptureStatusCode < 200 || c.CaptureStatusCode > 599 {
		return fmt.Errorf("CAPTURE_STATUS_CODE must be a valid HTTP status (got %d)", c.CaptureStatusCode)
	}
	if c.SynthesisTimeoutSeconds <= 0 {
		return fmt.Errorf("SYNTHESIS_TIMEOUT_SECONDS must be positive (got %d)", c.SynthesisTimeoutSeconds)
	}
	if c.SynthesisRatePerMinute < 0 {
		return fmt.Errorf("SYNTHESIS_RATE_PER_MINUTE cannot be negative (got %d)", c.SynthesisRatePerMinute)
	}
	if slices.Contains(c.CORSOrigins, "") {
		return fmt.Errorf("CORS_ORIGINS cannot contain empty entries")
	}
	return nil
}

// PostgresDSN builds a lib/pq connection URL
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: url.Values{"sslmode": {c.PostgresSSLMode}}.Encode(),
	}
	return u.String()
}

// SynthesisTimeout is the upper bound for one generator call
func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.SynthesisTimeoutSeconds) * time.Second
}

// SynthesisEnabled reports whether model credentials are configured
func (c *Config) SynthesisEnabled() bool {
	return c.GeminiAPIKey != ""
}
