// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string

	DBDriver string // "sqlite" or "postgres".
	DBDSN    string // File path for sqlite, connection URL for postgres.

	EncryptionKey      string
	DatabaseServiceKey string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	DefaultModel      string
	GraphBaseURL      string
	GraphAPIVersion   string

	CompletionTimeout time.Duration
	DispatchTimeout   time.Duration

	Tracing      string // "none" or "stdout".
	LogLevel     slog.Level
	KnowledgeDir string
}

// LoadDotEnv loads variables from the given dotenv files (".env" when none
// are given) without overriding variables already set. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// Secrets (RELAY_TOKEN_ENCRYPTION_KEY, RELAY_DATABASE_SERVICE_KEY,
// RELAY_OPENROUTER_API_KEY) are optional; the vault falls back to a weak
// built-in key and tenants without their own provider key cannot be served.
// Optional variables with defaults: RELAY_LISTEN_ADDR (127.0.0.1:8080),
// RELAY_DB_DRIVER (sqlite), RELAY_DB_PATH (inboxrelay.db),
// RELAY_COMPLETION_TIMEOUT (9s), RELAY_DISPATCH_TIMEOUT (5s),
// RELAY_TRACING (none), RELAY_LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         envOr("RELAY_LISTEN_ADDR", "127.0.0.1:8080"),
		DBDriver:           strings.ToLower(envOr("RELAY_DB_DRIVER", "sqlite")),
		EncryptionKey:      os.Getenv("RELAY_TOKEN_ENCRYPTION_KEY"),
		DatabaseServiceKey: os.Getenv("RELAY_DATABASE_SERVICE_KEY"),
		OpenRouterAPIKey:   os.Getenv("RELAY_OPENROUTER_API_KEY"),
		OpenRouterBaseURL:  os.Getenv("RELAY_OPENROUTER_BASE_URL"),
		DefaultModel:       envOr("RELAY_DEFAULT_MODEL", "openai/gpt-5.2"),
		GraphBaseURL:       os.Getenv("RELAY_GRAPH_BASE_URL"),
		GraphAPIVersion:    os.Getenv("RELAY_GRAPH_API_VERSION"),
		Tracing:            strings.ToLower(envOr("RELAY_TRACING", "none")),
		KnowledgeDir:       os.Getenv("RELAY_KNOWLEDGE_DIR"),
	}

	switch cfg.DBDriver {
	case "sqlite":
		cfg.DBDSN = envOr("RELAY_DB_DSN", envOr("RELAY_DB_PATH", "inboxrelay.db"))
	case "postgres":
		cfg.DBDSN = os.Getenv("RELAY_DB_DSN")
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("RELAY_DB_DSN is required when RELAY_DB_DRIVER is postgres")
		}
	default:
		return nil, fmt.Errorf("RELAY_DB_DRIVER has unsupported value %q (want sqlite or postgres)", cfg.DBDriver)
	}

	var err error
	if cfg.CompletionTimeout, err = positiveDuration("RELAY_COMPLETION_TIMEOUT", 9*time.Second); err != nil {
		return nil, err
	}
	if cfg.DispatchTimeout, err = positiveDuration("RELAY_DISPATCH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	switch cfg.Tracing {
	case "none", "stdout":
	default:
		return nil, fmt.Errorf("RELAY_TRACING has unsupported value %q (want none or stdout)", cfg.Tracing)
	}

	if v, ok := os.LookupEnv("RELAY_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("RELAY_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func positiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}
