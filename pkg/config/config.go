// Package config loads cpptrim settings from TOML, YAML, or JSON files,
// layered over defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for cpptrim.
type Config struct {
	Prune  PruneConfig  `koanf:"prune"`
	Cache  CacheConfig  `koanf:"cache"`
	Output OutputConfig `koanf:"output"`
}

// PruneConfig controls the pruning pipeline.
type PruneConfig struct {
	// EntryPoints are symbol names kept alive in addition to main.
	EntryPoints []string `koanf:"entry_points"`
	// Defines seeds directive evaluation (NAME -> replacement text).
	Defines map[string]string `koanf:"defines"`
	// KeepMacros are macro names never deleted even when unused.
	KeepMacros []string `koanf:"keep_macros"`
	// Workers caps batch parallelism; 0 means 2x NumCPU.
	Workers int `koanf:"workers"`
}

// CacheConfig controls caching of pruned outputs.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTL     int    `koanf:"ttl"` // hours
}

// OutputConfig controls report formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Prune: PruneConfig{
			EntryPoints: nil,
			Defines:     map[string]string{},
			KeepMacros:  nil,
			Workers:     0,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".cpptrim/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file, layering it over defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Result pairs a loaded config with the file it came from. Source is empty
// when defaults were used.
type Result struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
}

// LoadOption customizes LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads from an explicit config file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// LoadConfig loads from the given path, or searches the standard locations,
// falling back to defaults when no file exists.
func LoadConfig(opts ...LoadOption) (*Result, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &Result{Config: cfg, Source: o.path}, nil
	}

	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		return &Result{Config: cfg, Source: path}, nil
	}

	return &Result{Config: DefaultConfig()}, nil
}

// LoadOrDefault loads from the standard locations or returns defaults,
// ignoring malformed files.
func LoadOrDefault() *Config {
	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

func searchPaths() []string {
	names := []string{
		"cpptrim.toml",
		"cpptrim.yaml",
		"cpptrim.yml",
		"cpptrim.json",
		".cpptrim.toml",
		".cpptrim.yaml",
		".cpptrim.yml",
		".cpptrim.json",
	}

	var paths []string
	for _, dir := range []string{".", ".cpptrim"} {
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}
