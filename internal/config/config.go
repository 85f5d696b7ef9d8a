// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvRealtimeURL = "SOUSCHEF_REALTIME_URL"
	EnvDBPath      = "SOUSCHEF_DB"
	EnvRecipeDir   = "SOUSCHEF_RECIPE_DIR"
	EnvLogLevel    = "SOUSCHEF_LOG_LEVEL"
	EnvLogFile     = "SOUSCHEF_LOG_FILE"
	EnvDefaultPax  = "SOUSCHEF_PAX"
	EnvUserID      = "SOUSCHEF_USER"
)

// Config holds everything the serve command needs to wire the engine.
type Config struct {
	// RealtimeURL is the websocket change feed. Empty means no remote
	// edits: the engine runs on the in-process feed.
	RealtimeURL string

	// DBPath is the SQLite session database. Empty means in-memory
	// persistence only.
	DBPath string

	// RecipeDir is scanned for *.yaml recipe files at startup.
	RecipeDir string

	// LogLevel is "off", "normal", or "verbose".
	LogLevel string

	// LogFile receives log output; "stderr" or empty logs to stderr.
	LogFile string

	// DefaultPax is used when a session is started without a pax count.
	DefaultPax int

	// UserID tags created sessions.
	UserID string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RealtimeURL: os.Getenv(EnvRealtimeURL),
		DBPath:      os.Getenv(EnvDBPath),
		RecipeDir:   envOr(EnvRecipeDir, "recipes"),
		LogLevel:    envOr(EnvLogLevel, "normal"),
		LogFile:     os.Getenv(EnvLogFile),
		DefaultPax:  2,
		UserID:      os.Getenv(EnvUserID),
	}

	if v := os.Getenv(EnvDefaultPax); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q", EnvDefaultPax, v)
		}
		cfg.DefaultPax = n
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
