package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every RELAY_ env var that Load() reads.
var allConfigKeys = []string{
	"RELAY_LISTEN_ADDR",
	"RELAY_DB_DRIVER",
	"RELAY_DB_DSN",
	"RELAY_DB_PATH",
	"RELAY_TOKEN_ENCRYPTION_KEY",
	"RELAY_DATABASE_SERVICE_KEY",
	"RELAY_OPENROUTER_API_KEY",
	"RELAY_OPENROUTER_BASE_URL",
	"RELAY_DEFAULT_MODEL",
	"RELAY_GRAPH_BASE_URL",
	"RELAY_GRAPH_API_VERSION",
	"RELAY_COMPLETION_TIMEOUT",
	"RELAY_DISPATCH_TIMEOUT",
	"RELAY_TRACING",
	"RELAY_LOG_LEVEL",
	"RELAY_KNOWLEDGE_DIR",
}

// isolateConfigEnv saves and unsets all RELAY_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("RELAY_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("RELAY_DB_PATH", "/tmp/relay.db")
	t.Setenv("RELAY_TOKEN_ENCRYPTION_KEY", "primary")
	t.Setenv("RELAY_DATABASE_SERVICE_KEY", "service")
	t.Setenv("RELAY_OPENROUTER_API_KEY", "sk-global")
	t.Setenv("RELAY_DEFAULT_MODEL", "meta/llama")
	t.Setenv("RELAY_COMPLETION_TIMEOUT", "15s")
	t.Setenv("RELAY_DISPATCH_TIMEOUT", "2s")
	t.Setenv("RELAY_TRACING", "STDOUT")
	t.Setenv("RELAY_LOG_LEVEL", "debug")
	t.Setenv("RELAY_KNOWLEDGE_DIR", "./kb")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/relay.db", cfg.DBDSN)
	assert.Equal(t, "primary", cfg.EncryptionKey)
	assert.Equal(t, "service", cfg.DatabaseServiceKey)
	assert.Equal(t, "sk-global", cfg.OpenRouterAPIKey)
	assert.Equal(t, "meta/llama", cfg.DefaultModel)
	assert.Equal(t, 15*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 2*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, "stdout", cfg.Tracing)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "./kb", cfg.KnowledgeDir)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "inboxrelay.db", cfg.DBDSN)
	assert.Equal(t, "openai/gpt-5.2", cfg.DefaultModel)
	assert.Equal(t, 9*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 5*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, "none", cfg.Tracing)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.EncryptionKey)
}

func TestLoad_Postgres(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("RELAY_DB_DRIVER", "postgres")
	t.Setenv("RELAY_DB_DSN", "postgres://relay:secret@db:5432/relay?sslmode=disable")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://relay:secret@db:5432/relay?sslmode=disable", cfg.DBDSN)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without dsn", env: map[string]string{"RELAY_DB_DRIVER": "postgres"}},
		{name: "unknown driver", env: map[string]string{"RELAY_DB_DRIVER": "mysql"}},
		{name: "bad completion timeout", env: map[string]string{"RELAY_COMPLETION_TIMEOUT": "soon"}},
		{name: "zero dispatch timeout", env: map[string]string{"RELAY_DISPATCH_TIMEOUT": "0s"}},
		{name: "negative completion timeout", env: map[string]string{"RELAY_COMPLETION_TIMEOUT": "-1s"}},
		{name: "unknown tracer", env: map[string]string{"RELAY_TRACING": "jaeger"}},
		{name: "bad log level", env: map[string]string{"RELAY_LOG_LEVEL": "chatty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("RELAY_LISTEN_ADDR", "127.0.0.1:7000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RELAY_OPENROUTER_API_KEY=sk-from-file\nRELAY_LISTEN_ADDR=0.0.0.0:1\n"), 0o600))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", cfg.OpenRouterAPIKey)
	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr, "existing variables are not overridden")
}
