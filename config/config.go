// Package config loads application configuration from environment
// variables, with optional .env files for development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete application configuration.
type Config struct {
	Environment   string
	Server        ServerConfig
	Dispatch      DispatchConfig
	Ledger        LedgerConfig
	Sessions      SessionConfig
	Providers     ProvidersConfig
	Credentials   CredentialsConfig
	Observability ObservabilityConfig
}

// ServerConfig holds the local HTTP API configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DispatchConfig bounds the dispatch transports.
type DispatchConfig struct {
	RemoteTimeout    time.Duration
	LocalHTTPTimeout time.Duration
	ProcessTimeout   time.Duration
	MaxRetries       int
	BaseDelay        time.Duration
}

// LedgerConfig locates the usage ledger file and its write debounce.
type LedgerConfig struct {
	Path     string
	Debounce time.Duration
}

// SessionConfig locates the session store and its idle timeout.
type SessionConfig struct {
	Path        string
	IdleTimeout time.Duration
}

// ProvidersConfig points at an optional YAML catalog override.
type ProvidersConfig struct {
	CatalogPath string
}

// CredentialsConfig locates the credential file.
type CredentialsConfig struct {
	Path string
}

// ObservabilityConfig holds logging configuration.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New loads configuration from the environment.
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	stateDir := getEnv("MODELRELAY_STATE_DIR", defaultStateDir())

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			Port:            getEnvAsInt("SERVER_PORT", 8732),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Dispatch: DispatchConfig{
			RemoteTimeout:    getEnvAsDuration("DISPATCH_REMOTE_TIMEOUT", 30*time.Second),
			LocalHTTPTimeout: getEnvAsDuration("DISPATCH_LOCAL_HTTP_TIMEOUT", 600*time.Second),
			ProcessTimeout:   getEnvAsDuration("DISPATCH_PROCESS_TIMEOUT", 300*time.Second),
			MaxRetries:       getEnvAsInt("DISPATCH_MAX_RETRIES", 3),
			BaseDelay:        getEnvAsDuration("DISPATCH_RETRY_BASE_DELAY", 1*time.Second),
		},
		Ledger: LedgerConfig{
			Path:     getEnv("LEDGER_PATH", filepath.Join(stateDir, "usage.json")),
			Debounce: getEnvAsDuration("LEDGER_DEBOUNCE", 500*time.Millisecond),
		},
		Sessions: SessionConfig{
			Path:        getEnv("SESSION_PATH", filepath.Join(stateDir, "sessions.json")),
			IdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		},
		Providers: ProvidersConfig{
			CatalogPath: getEnv("PROVIDER_CATALOG", ""),
		},
		Credentials: CredentialsConfig{
			Path: getEnv("CREDENTIALS_PATH", filepath.Join(stateDir, "credentials.json")),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Dispatch.MaxRetries < 1 {
		return fmt.Errorf("DISPATCH_MAX_RETRIES must be at least 1")
	}
	if c.Dispatch.RemoteTimeout <= 0 || c.Dispatch.LocalHTTPTimeout <= 0 || c.Dispatch.ProcessTimeout <= 0 {
		return fmt.Errorf("dispatch timeouts must be positive")
	}
	if c.Ledger.Debounce <= 0 {
		return fmt.Errorf("LEDGER_DEBOUNCE must be positive")
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger path is required")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".modelrelay"
	}
	return filepath.Join(dir, "modelrelay")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
