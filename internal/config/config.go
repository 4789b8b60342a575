package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource   string
	DBMaxConns int32
	Driver     string
	Port       string
	Env        string
	LogLevel   string

	ApprovalMaxRetries     int
	ApprovalRetryBaseDelay time.Duration
	ShutdownTimeout        time.Duration

	// Store circuit breaker; failures counts consecutive unavailable errors.
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := getEnv("STORE_DRIVER", DriverPostgres)
	if driver != DriverPostgres && driver != DriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, driver)
	}

	dbSource := os.Getenv("DB_SOURCE")
	if driver == DriverPostgres && dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	maxConns, err := getInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, err
	}
	retries, err := getInt("APPROVAL_MAX_RETRIES", 7)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, fmt.Errorf("APPROVAL_MAX_RETRIES must not be negative")
	}
	baseDelay, err := getDuration("APPROVAL_RETRY_BASE_DELAY", 2*time.Millisecond)
	if err != nil {
		return nil, err
	}
	shutdown, err := getDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	breakerFailures, err := getInt("DB_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	if breakerFailures < 1 {
		return nil, fmt.Errorf("DB_BREAKER_FAILURES must be at least 1")
	}
	breakerTimeout, err := getDuration("DB_BREAKER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		DBSource:               dbSource,
		DBMaxConns:             int32(maxConns),
		Driver:                 driver,
		Port:                   getEnv("SERVER_PORT", "8080"),
		Env:                    getEnv("ENVIRONMENT", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		ApprovalMaxRetries:     retries,
		ApprovalRetryBaseDelay: baseDelay,
		ShutdownTimeout:        shutdown,
		BreakerFailures:        breakerFailures,
		BreakerOpenTimeout:     breakerTimeout,
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
