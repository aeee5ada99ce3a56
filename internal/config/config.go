// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Supported storage backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the runtime settings for the memory store.
type Config struct {
	// Backend selects the storage implementation: file, sqlite, or postgres.
	Backend string
	// DataDir is where the file backend keeps workspace documents and the
	// sqlite backend keeps its database file.
	DataDir string
	// DatabaseURL is the postgres connection string. Required when
	// Backend is postgres.
	DatabaseURL string
}

// Load reads configuration from environment variables, applying defaults
// for anything unset.
func Load() (Config, error) {
	cfg := Config{
		Backend:     getEnv("MEMORY_BACKEND", BackendFile),
		DataDir:     os.Getenv("MEMORY_DATA_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	switch cfg.Backend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when MEMORY_BACKEND=%s", cfg.Backend)
		}
	default:
		return Config{}, fmt.Errorf("unknown MEMORY_BACKEND %q", cfg.Backend)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to determine home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".workmem")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
