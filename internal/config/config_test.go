package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"HABIT_CONFIG", "TELEGRAM_TOKEN", "DATABASE_URL", "STORAGE_BACKEND", "NATS_URL", "NATS_BUCKET", "TIMEZONE", "LOG_DIR", "LOG_DEBUG"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "habit_tracker.db", cfg.DatabaseURL)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, "habits", cfg.NATSBucket)
	assert.NotNil(t, cfg.Location)
	assert.Error(t, cfg.RequireTelegram())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", " token ")
	t.Setenv("STORAGE_BACKEND", "Memory")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.True(t, cfg.Debug)
	assert.NoError(t, cfg.RequireTelegram())
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "telegram_token: from-file\ndatabase_url: /tmp/file.db\nstorage_backend: nats\nnats_url: nats://localhost:4222\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DATABASE_URL", "/tmp/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TelegramToken)
	assert.Equal(t, "/tmp/env.db", cfg.DatabaseURL)
	assert.Equal(t, BackendNATS, cfg.StorageBackend)
}

func TestLoadErrors(t *testing.T) {
	t.Run("nats without url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_BACKEND", "nats")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("unknown backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_BACKEND", "redis")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("bad timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TIMEZONE", "Mars/Olympus")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("bad debug flag", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LOG_DEBUG", "maybe")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
