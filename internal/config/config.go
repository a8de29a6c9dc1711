// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for hazard databases and caches (always absolute)
	Port                int
	LogLevel            string
	DevMode             bool
	DispatchConcurrency int    // Parallel hazard store reads per portfolio calculation
	FailurePolicy       string // "isolate" or "abort"
	DefaultScenario     string
	DefaultYear         int
	CacheTTLHours       int // Hazard response cache entries older than this are swept
	S3                  *S3Config
}

// S3Config holds the optional object-store source for hazard curve sets.
// When Bucket is empty, curve sets are loaded only from the local store.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory to an absolute path and make sure it exists
	dataDir := getEnv("WINDWARD_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("WINDWARD_PORT", 8080),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		DispatchConcurrency: getEnvAsInt("DISPATCH_CONCURRENCY", 4),
		FailurePolicy:       getEnv("FAILURE_POLICY", "isolate"),
		DefaultScenario:     getEnv("DEFAULT_SCENARIO", "historical"),
		DefaultYear:         getEnvAsInt("DEFAULT_YEAR", 2030),
		CacheTTLHours:       getEnvAsInt("CACHE_TTL_HOURS", 24),
		S3: &S3Config{
			Bucket: getEnv("HAZARD_S3_BUCKET", ""),
			Prefix: getEnv("HAZARD_S3_PREFIX", "hazard"),
			Region: getEnv("HAZARD_S3_REGION", "eu-central-1"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DispatchConcurrency < 1 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be at least 1, got %d", c.DispatchConcurrency)
	}
	if c.FailurePolicy != "isolate" && c.FailurePolicy != "abort" {
		return fmt.Errorf("FAILURE_POLICY must be \"isolate\" or \"abort\", got %q", c.FailurePolicy)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
