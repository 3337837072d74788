// Package config loads the YAML run configuration for the CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every knob of an embedding run. Zero values fall back to the
// defaults of DefaultConfig.
type Config struct {
	ChunkSize      int      `yaml:"chunk_size"`
	NumFreqs       int      `yaml:"n_freqs"`
	Seed           uint64   `yaml:"seed"`
	Orthogonal     bool     `yaml:"orthogonal"`
	SkipRFF        bool     `yaml:"skip_rff"`
	Bandwidth      float64  `yaml:"bandwidth"`
	SkipFeats      []string `yaml:"skip_feats"`
	SkipAllocFlags bool     `yaml:"skip_alloc_flags"`
	Subsets        string   `yaml:"subsets"`
	WeightColumn   string   `yaml:"weight_column"`
	SqueezeQueries bool     `yaml:"squeeze_queries"`
	VersionsFile   string   `yaml:"versions_file"`
}

// DefaultConfig mirrors stream.DefaultOptions.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:      8192,
		NumFreqs:       2048,
		Orthogonal:     true,
		SkipAllocFlags: true,
		SqueezeQueries: true,
		WeightColumn:   "PWGTP",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.ChunkSize <= 0 || cfg.NumFreqs <= 0 {
		return nil, fmt.Errorf("config: chunk_size and n_freqs must be positive")
	}
	return cfg, nil
}
