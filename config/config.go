// Package config loads server settings from the environment. A .env file
// in the working directory is honored for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	Port string

	// HubbleBaseURL points at the content catalog gateway.
	HubbleBaseURL string

	// OpenRouter credentials for the assistant. Empty key disables the
	// description fallback and mood/random suggestions.
	OpenRouterAPIKey string
	OpenRouterModel  string

	// StoreBackend selects library persistence: "sqlite" or "file".
	StoreBackend string
	DataDir      string

	// LogFile enables rotating file logging when set.
	LogFile string
}

// Load reads the configuration, applying defaults for anything unset.
func Load() (*Config, error) {
	// Missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		HubbleBaseURL:    getEnv("HUBBLE_BASE_URL", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", ""),
		StoreBackend:     getEnv("STORE_BACKEND", "sqlite"),
		DataDir:          getEnv("DATA_DIR", "./data"),
		LogFile:          getEnv("LOG_FILE", ""),
	}

	if cfg.HubbleBaseURL == "" {
		return nil, fmt.Errorf("HUBBLE_BASE_URL is required")
	}
	if cfg.StoreBackend != "sqlite" && cfg.StoreBackend != "file" {
		return nil, fmt.Errorf("STORE_BACKEND must be sqlite or file, got %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// DatabasePath is where the sqlite backend keeps the library database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "kinoliba.db")
}

// LibraryDir is where the file backend keeps per-user library files.
func (c *Config) LibraryDir() string {
	return filepath.Join(c.DataDir, "library")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
