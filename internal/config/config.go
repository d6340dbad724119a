package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	TelegramToken  string `yaml:"telegram_token"`
	DatabaseURL    string `yaml:"database_url"`
	StorageBackend string `yaml:"storage_backend"`
	NATSURL        string `yaml:"nats_url"`
	NATSBucket     string `yaml:"nats_bucket"`
	Timezone       string `yaml:"timezone"`
	LogDir         string `yaml:"log_dir"`
	Debug          bool   `yaml:"debug"`

	Location *time.Location `yaml:"-"`
}

// Load reads the optional YAML file at path, then applies environment
// variables on top, then fills in defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = strings.TrimSpace(os.Getenv("HABIT_CONFIG"))
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	overrideString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.StorageBackend, "STORAGE_BACKEND")
	overrideString(&cfg.NATSURL, "NATS_URL")
	overrideString(&cfg.NATSBucket, "NATS_BUCKET")
	overrideString(&cfg.Timezone, "TIMEZONE")
	overrideString(&cfg.LogDir, "LOG_DIR")
	if raw := strings.TrimSpace(os.Getenv("LOG_DEBUG")); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, fmt.Errorf("LOG_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "habit_tracker.db"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendSQLite
	}
	cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
	if cfg.NATSBucket == "" {
		cfg.NATSBucket = "habits"
	}

	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return cfg, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	cfg.Location = loc

	switch cfg.StorageBackend {
	case BackendSQLite, BackendMemory:
	case BackendNATS:
		if cfg.NATSURL == "" {
			return cfg, fmt.Errorf("NATS_URL is required for the %s backend", BackendNATS)
		}
	default:
		return cfg, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// RequireTelegram reports an error when the bot cannot be started.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func overrideString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}
