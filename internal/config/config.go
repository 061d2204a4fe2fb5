// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultReferencePrice is the fixed quote used by the returns projection.
// There is no market-data feed; every security is marked against this price.
const DefaultReferencePrice = 100.0

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the orders database (always absolute)
	LogLevel       string
	Port           int
	DevMode        bool
	ReferencePrice float64 // Reference price used by the returns projection
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. Check STOCKAPP_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path and ensure it exists
	dataDir := getEnv("STOCKAPP_DATA_DIR", "")
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
		DataDir:        absDataDir,
		Port:           getEnvAsInt("PORT", 8080),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ReferencePrice: getEnvAsFloat("REFERENCE_PRICE", DefaultReferencePrice),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ReferencePrice < 0 {
		return fmt.Errorf("reference price must be non-negative, got %f", c.ReferencePrice)
	}
	return nil
}

// DatabasePath returns the path of the orders database file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "orders.db")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
