package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true by default")
	}
	if cfg.Cache.TTL != 24 {
		t.Errorf("Cache.TTL = %d, want 24", cfg.Cache.TTL)
	}
	if cfg.Cache.Dir != ".cpptrim/cache" {
		t.Errorf("Cache.Dir = %s, want .cpptrim/cache", cfg.Cache.Dir)
	}

	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if !cfg.Output.Color {
		t.Error("Output.Color should be true by default")
	}

	if cfg.Prune.Workers != 0 {
		t.Errorf("Prune.Workers = %d, want 0", cfg.Prune.Workers)
	}
	if len(cfg.Prune.EntryPoints) != 0 {
		t.Errorf("Prune.EntryPoints should be empty by default, got %v", cfg.Prune.EntryPoints)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cpptrim.toml")

	content := `
[prune]
entry_points = ["solve"]
keep_macros = ["ONLINE_JUDGE"]
workers = 4

[prune.defines]
ONLINE_JUDGE = "1"

[cache]
enabled = false

[output]
format = "json"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Prune.EntryPoints) != 1 || cfg.Prune.EntryPoints[0] != "solve" {
		t.Errorf("Prune.EntryPoints = %v, want [solve]", cfg.Prune.EntryPoints)
	}
	if cfg.Prune.Defines["ONLINE_JUDGE"] != "1" {
		t.Errorf("Prune.Defines = %v, want ONLINE_JUDGE=1", cfg.Prune.Defines)
	}
	if cfg.Prune.Workers != 4 {
		t.Errorf("Prune.Workers = %d, want 4", cfg.Prune.Workers)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cpptrim.yaml")

	content := `
prune:
  keep_macros:
    - DEBUG
  workers: 2

output:
  format: markdown
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Prune.KeepMacros) != 1 || cfg.Prune.KeepMacros[0] != "DEBUG" {
		t.Errorf("Prune.KeepMacros = %v, want [DEBUG]", cfg.Prune.KeepMacros)
	}
	if cfg.Prune.Workers != 2 {
		t.Errorf("Prune.Workers = %d, want 2", cfg.Prune.Workers)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %s, want markdown", cfg.Output.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cpptrim.json")

	content := `{
  "prune": {
    "entry_points": ["handler"],
    "workers": 8
  },
  "cache": {
    "ttl": 48
  }
}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Prune.EntryPoints) != 1 || cfg.Prune.EntryPoints[0] != "handler" {
		t.Errorf("Prune.EntryPoints = %v, want [handler]", cfg.Prune.EntryPoints)
	}
	if cfg.Cache.TTL != 48 {
		t.Errorf("Cache.TTL = %d, want 48", cfg.Cache.TTL)
	}
	// Untouched sections keep defaults.
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should keep its default")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/cpptrim.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cpptrim.toml")

	content := `[prune
invalid toml`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadOrDefault(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg == nil {
		t.Fatal("LoadOrDefault() returned nil")
	}
	if cfg.Cache.TTL != 24 {
		t.Errorf("LoadOrDefault() returned non-default Cache.TTL: %d", cfg.Cache.TTL)
	}
}

func TestLoadOrDefaultWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	content := `
[cache]
ttl = 999
`
	if err := os.WriteFile(filepath.Join(tmpDir, "cpptrim.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg.Cache.TTL != 999 {
		t.Errorf("LoadOrDefault() should load from file, got Cache.TTL=%d", cfg.Cache.TTL)
	}
}

func TestLoadConfigReportsSource(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cpptrim.toml")
	if err := os.WriteFile(configPath, []byte("[output]\nformat = \"json\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	result, err := LoadConfig(WithPath(configPath))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if result.Source != configPath {
		t.Errorf("Source = %s, want %s", result.Source, configPath)
	}
	if result.Config.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", result.Config.Output.Format)
	}
}

func TestLoadConfigDefaultsWhenNoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	result, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if result.Source != "" {
		t.Errorf("Source = %s, want empty", result.Source)
	}
}
