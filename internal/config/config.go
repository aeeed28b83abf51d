// Package config loads service configuration from defaults, an optional
// config file, a .env file and FINANCE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. FINANCE_SERVER_PORT.
const EnvPrefix = "FINANCE"

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	AI       AIConfig       `mapstructure:"ai"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IngestTimeout time.Duration `mapstructure:"ingest_timeout"`
	MaxUploadMB   int64         `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path         string `mapstructure:"path"`
	SeedTaxonomy bool   `mapstructure:"seed_taxonomy"`
}

// IngestConfig holds ingestion pipeline switches.
type IngestConfig struct {
	// ReconcileMPPB enables merchant assignment for previously unresolved
	// mppb transactions. Off by default.
	ReconcileMPPB bool `mapstructure:"reconcile_mppb"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GCSConfig holds upload archive settings. An empty bucket disables archiving.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// BigQueryConfig holds analytics export settings. An empty project disables export.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

// AIConfig holds the Gemini categorization settings.
type AIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

// JobsConfig holds the follow-up job queue settings.
type JobsConfig struct {
	Buffer     int `mapstructure:"buffer"`
	Workers    int `mapstructure:"workers"`
	MaxRetries int `mapstructure:"max_retries"`
}

// ExportEnabled reports whether newly ingested transactions are mirrored to BigQuery.
func (c *Config) ExportEnabled() bool {
	return c.BigQuery.Project != ""
}

// ArchiveEnabled reports whether raw uploads are archived to GCS.
func (c *Config) ArchiveEnabled() bool {
	return c.GCS.Bucket != ""
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; explicit environment variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}
	return LoadWithViper(viper.New())
}

// LoadWithViper reads configuration using the provided viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path := os.Getenv("FINANCE_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.finance-dashboard")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("LoadWithViper: reading config file: %w", err)
		}
	}

	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("LoadWithViper: binding GEMINI_API_KEY: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("LoadWithViper: unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("LoadWithViper: invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.ingest_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("database.path", "finance.db")
	v.SetDefault("database.seed_taxonomy", true)

	v.SetDefault("ingest.reconcile_mppb", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("gcs.bucket", "")

	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("bigquery.table", "dashboard_transactions")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.api_key", "")

	v.SetDefault("jobs.buffer", 100)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.max_retries", 3)
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read/write timeouts must be positive")
	}
	if c.Server.IngestTimeout <= 0 {
		return fmt.Errorf("server.ingest_timeout must be positive, got %s", c.Server.IngestTimeout)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Log.Format)
	}

	if c.ExportEnabled() && (c.BigQuery.Dataset == "" || c.BigQuery.Table == "") {
		return fmt.Errorf("bigquery.dataset and bigquery.table are required when bigquery.project is set")
	}

	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY required when AI is enabled")
	}

	if c.Jobs.Buffer < 1 || c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.buffer and jobs.workers must be at least 1")
	}
	if c.Jobs.MaxRetries < 0 {
		return fmt.Errorf("jobs.max_retries must not be negative")
	}

	return nil
}
