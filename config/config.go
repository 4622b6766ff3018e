package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	redisadapter "progresskit/adapters/redis"
	sqlxadapter "progresskit/adapters/sqlx"
	"progresskit/scoring"
)

// Environment represents the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete server configuration.
type Config struct {
	Environment Environment `json:"environment" env:"PROGRESSKIT_ENV"`
	Profile     string      `json:"profile" env:"PROGRESSKIT_PROFILE"`

	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Security SecurityConfig `json:"security"`
	Scoring  scoring.Config `json:"scoring"`
	Webhooks WebhookConfig  `json:"webhooks"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address           string        `json:"address" env:"PROGRESSKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"PROGRESSKIT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"PROGRESSKIT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"PROGRESSKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"PROGRESSKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"PROGRESSKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"PROGRESSKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"PROGRESSKIT_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects and configures the progression store adapter.
type StorageConfig struct {
	Adapter string              `json:"adapter" env:"PROGRESSKIT_STORAGE_ADAPTER"`
	Redis   redisadapter.Config `json:"redis,omitempty"`
	SQL     sqlxadapter.Config  `json:"sql,omitempty"`
	File    FileConfig          `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration.
type FileConfig struct {
	Path string `json:"path" env:"PROGRESSKIT_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string            `json:"level" env:"PROGRESSKIT_LOG_LEVEL"`
	Format     string            `json:"format" env:"PROGRESSKIT_LOG_FORMAT"`
	Output     string            `json:"output" env:"PROGRESSKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SecurityConfig holds API surface protection settings.
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"PROGRESSKIT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"PROGRESSKIT_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"PROGRESSKIT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"PROGRESSKIT_SECURITY_RATE_LIMIT_BURST"`
}

// WebhookConfig lists notification webhook endpoints.
type WebhookConfig struct {
	Endpoints []string `json:"endpoints,omitempty" env:"PROGRESSKIT_WEBHOOK_ENDPOINTS"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file; environment variables
// override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}
	cleanPath := filepath.Clean(path)
	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}
	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}
	return nil
}

// DefaultConfig returns development defaults.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redisadapter.DefaultConfig(),
			SQL:     sqlxadapter.DefaultConfig(sqlxadapter.DriverPostgres),
			File: FileConfig{
				Path: "./data/progresskit.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
		Scoring: scoring.DefaultConfig(),
	}
}

// Validate validates the configuration and returns detailed error messages.
func (c *Config) Validate() error {
	var errs []string
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a JSON representation with secrets redacted.
func (c *Config) String() string {
	cfg := *c
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
