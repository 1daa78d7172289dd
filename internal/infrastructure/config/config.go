// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Reconciliation tolerances are carried in an explicit ReconcileConfig
// struct handed to the orchestrator constructor; nothing in the engine
// reads ambient global state at run time.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration.
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Reconcile     ReconcileConfig     `yaml:"reconcile"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	BackupDir    string `yaml:"backup_dir"`
}

// ReconcileConfig holds the tolerances and bounds of a reconciliation run.
type ReconcileConfig struct {
	AmountToleranceCents int64   `yaml:"amount_tolerance_cents"`
	DateWindowDays       int     `yaml:"date_window_days"`
	MinConfidence        float64 `yaml:"min_confidence"`
	BatchSize            int     `yaml:"batch_size"`
	MaxSplitMembers      int     `yaml:"max_split_members"`
}

// APIConfig holds the read-only reporting server settings.
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultReconcile returns the standard run tolerances.
func DefaultReconcile() ReconcileConfig {
	return ReconcileConfig{
		AmountToleranceCents: 1,
		DateWindowDays:       7,
		MinConfidence:        0.35,
		BatchSize:            250,
		MaxSplitMembers:      6,
	}
}

// Load reads and parses the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	cfg := defaults()
	cfg.Storage.DatabasePath = getEnv("RECON_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Storage.BackupDir = getEnv("RECON_BACKUP_DIR", cfg.Storage.BackupDir)
	cfg.Reconcile.AmountToleranceCents = int64(getEnvInt("RECON_AMOUNT_TOLERANCE_CENTS", int(cfg.Reconcile.AmountToleranceCents)))
	cfg.Reconcile.DateWindowDays = getEnvInt("RECON_DATE_WINDOW_DAYS", cfg.Reconcile.DateWindowDays)
	cfg.Reconcile.BatchSize = getEnvInt("RECON_BATCH_SIZE", cfg.Reconcile.BatchSize)
	cfg.API.Port = getEnvInt("RECON_API_PORT", cfg.API.Port)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)
	return cfg
}

// LoadOrEnv tries to load from the given path (or "config.yaml" when
// empty), falling back to environment variables.
func LoadOrEnv(path string) *Config {
	if path == "" {
		path = "config.yaml"
	}
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "reconcile.db",
			BackupDir:    "backups",
		},
		Reconcile: DefaultReconcile(),
		API: APIConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default.
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
