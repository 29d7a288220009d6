package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.TargetVersion != fixer.DefaultTargetVersion {
		t.Errorf("TargetVersion = %d, want %d", cfg.TargetVersion, fixer.DefaultTargetVersion)
	}
	if cfg.LegacyCutoff != fixer.LegacyCutoff {
		t.Errorf("LegacyCutoff = %d, want %d", cfg.LegacyCutoff, fixer.LegacyCutoff)
	}
	if cfg.MaxDepth != fixer.DefaultMaxDepth {
		t.Errorf("MaxDepth = %d, want %d", cfg.MaxDepth, fixer.DefaultMaxDepth)
	}
	if cfg.Batch.Workers != 4 || cfg.Cache.MaxEntries != 1024 || cfg.Server.Port != 8080 {
		t.Errorf("Default() = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "legacyfix.yaml", `
target_version: 1343
max_depth: 16
log:
  level: debug
  format: json
journal:
  path: /tmp/journal.db
server:
  port: 9000
  allowed_origins:
    - http://localhost:3000
batch:
  workers: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetVersion != 1343 || cfg.MaxDepth != 16 {
		t.Errorf("versions = %d/%d", cfg.TargetVersion, cfg.MaxDepth)
	}
	if cfg.LegacyCutoff != fixer.LegacyCutoff {
		t.Errorf("LegacyCutoff = %d, want default", cfg.LegacyCutoff)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Journal.Path != "/tmp/journal.db" {
		t.Errorf("Journal.Path = %q", cfg.Journal.Path)
	}
	if cfg.Server.Port != 9000 || len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Batch.Workers != 2 {
		t.Errorf("Batch.Workers = %d, want 2", cfg.Batch.Workers)
	}

	ec := cfg.EngineConfig()
	if ec.TargetVersion != 1343 || ec.MaxDepth != 16 {
		t.Errorf("EngineConfig() = %+v", ec)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEGACYFIX_MAX_DEPTH", "8")
	t.Setenv("LEGACYFIX_BATCH_WORKERS", "7")
	path := writeFile(t, "legacyfix.yaml", "max_depth: 16\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxDepth != 8 {
		t.Errorf("MaxDepth = %d, want 8 from env", cfg.MaxDepth)
	}
	if cfg.Batch.Workers != 7 {
		t.Errorf("Batch.Workers = %d, want 7 from env", cfg.Batch.Workers)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load(absent) expected error")
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeFile(t, "legacyfix.yaml", "target_version: 1000\nlegacy_cutoff: 1343\n")
	_, err := Load(path)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Load() error = %v, want ErrInvalidInput", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero target", func(c *Config) { c.TargetVersion = 0 }},
		{"negative cutoff", func(c *Config) { c.LegacyCutoff = -1 }},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }},
		{"negative cache", func(c *Config) { c.Cache.MaxEntries = -1 }},
		{"port range", func(c *Config) { c.Server.Port = 70000 }},
		{"no workers", func(c *Config) { c.Batch.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
