package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadWithViper_Defaults(t *testing.T) {
	t.Setenv("FINANCE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadWithViper(viper.New())
	if err != nil {
		t.Fatalf("LoadWithViper failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.IngestTimeout != 60*time.Second {
		t.Errorf("Server.IngestTimeout = %s, want 60s", cfg.Server.IngestTimeout)
	}
	if cfg.Ingest.ReconcileMPPB {
		t.Error("Ingest.ReconcileMPPB should default to false")
	}
	if !cfg.Database.SeedTaxonomy {
		t.Error("Database.SeedTaxonomy should default to true")
	}
	if cfg.ExportEnabled() {
		t.Error("export should be disabled without a project")
	}
	if cfg.ArchiveEnabled() {
		t.Error("archive should be disabled without a bucket")
	}
}

func TestLoadWithViper_EnvOverrides(t *testing.T) {
	t.Setenv("FINANCE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("FINANCE_SERVER_PORT", "9090")
	t.Setenv("FINANCE_SERVER_INGEST_TIMEOUT", "5s")
	t.Setenv("FINANCE_INGEST_RECONCILE_MPPB", "true")
	t.Setenv("FINANCE_BIGQUERY_PROJECT", "demo-project")
	t.Setenv("FINANCE_AI_ENABLED", "true")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := LoadWithViper(viper.New())
	if err != nil {
		t.Fatalf("LoadWithViper failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Server.IngestTimeout != 5*time.Second {
		t.Errorf("Server.IngestTimeout = %s, want 5s", cfg.Server.IngestTimeout)
	}
	if !cfg.Ingest.ReconcileMPPB {
		t.Error("Ingest.ReconcileMPPB should be true")
	}
	if !cfg.ExportEnabled() {
		t.Error("export should be enabled")
	}
	if cfg.AI.APIKey != "secret" {
		t.Errorf("AI.APIKey = %q, want value from GEMINI_API_KEY", cfg.AI.APIKey)
	}
}

func TestLoadWithViper_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: \"7070\"\ndatabase:\n  path: /tmp/finance-test.db\nlog:\n  format: json\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FINANCE_CONFIG", path)

	cfg, err := LoadWithViper(viper.New())
	if err != nil {
		t.Fatalf("LoadWithViper failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %q, want 7070", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/finance-test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", ReadTimeout: time.Second, WriteTimeout: time.Second, IngestTimeout: time.Second, MaxUploadMB: 1},
			Database: DatabaseConfig{Path: "finance.db"},
			Log:      LogConfig{Level: "info", Format: "console"},
			Jobs:     JobsConfig{Buffer: 1, Workers: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero ingest timeout", mutate: func(c *Config) { c.Server.IngestTimeout = 0 }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "ai without key", mutate: func(c *Config) { c.AI.Enabled = true }, wantErr: true},
		{name: "export without table", mutate: func(c *Config) { c.BigQuery.Project = "p"; c.BigQuery.Dataset = "d" }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.Jobs.Workers = 0 }, wantErr: true},
		{name: "empty database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
