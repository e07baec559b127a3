// Package config provides configuration loading and management for ciftiroi.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Cluster detection parameters
	Clustering struct {
		// Threshold is the minimum statistic value for a vertex to join a cluster
		Threshold float64 `yaml:"threshold"`

		// Distance is the minimum distance between clusters
		Distance float64 `yaml:"distance"`

		// Column selects the map of the cluster file that is read
		Column int `yaml:"column"`
	} `yaml:"clustering"`

	// Atlas parameters
	Atlas struct {
		// MapIndex selects the label map of a multi-map atlas
		MapIndex int `yaml:"mapIndex"`
	} `yaml:"atlas"`

	// Surface-processing command parameters
	Workbench struct {
		// Command is the executable name or path
		Command string `yaml:"command"`

		// Timeout bounds each command invocation, 0 disables it
		Timeout Duration `yaml:"timeout"`

		// TempDir holds the per-run directories of intermediate files
		TempDir string `yaml:"tempDir"`
	} `yaml:"workbench"`

	// Output parameters
	Output struct {
		// LegacyExtensionMatch rewrites any output path containing
		// .csv/.tsv/.txt, not only paths ending in one
		LegacyExtensionMatch bool `yaml:"legacyExtensionMatch"`

		// SaveIntermediaryResults writes per-hemisphere vectors as .npy files
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary results are saved
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Clustering.Threshold = 1.77
	cfg.Clustering.Distance = 20
	cfg.Clustering.Column = 0

	cfg.Atlas.MapIndex = 0

	cfg.Workbench.Command = "wb_command"
	cfg.Workbench.Timeout = Duration(30 * time.Minute)
	cfg.Workbench.TempDir = ""

	cfg.Output.LegacyExtensionMatch = false
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks that all values are usable
func (c *Config) Validate() error {
	if c.Clustering.Threshold < 0 {
		return fmt.Errorf("clustering.threshold must not be negative, got %g", c.Clustering.Threshold)
	}
	if c.Clustering.Distance < 0 {
		return fmt.Errorf("clustering.distance must not be negative, got %g", c.Clustering.Distance)
	}
	if c.Clustering.Column < 0 {
		return fmt.Errorf("clustering.column must not be negative, got %d", c.Clustering.Column)
	}
	if c.Atlas.MapIndex < 0 {
		return fmt.Errorf("atlas.mapIndex must not be negative, got %d", c.Atlas.MapIndex)
	}
	if c.Workbench.Command == "" {
		return fmt.Errorf("workbench.command must be set")
	}
	if c.Workbench.Timeout < 0 {
		return fmt.Errorf("workbench.timeout must not be negative, got %s", c.Workbench.Timeout)
	}
	if c.Output.SaveIntermediaryResults && c.Output.IntermediaryDir == "" {
		return fmt.Errorf("output.intermediaryDir must be set when saving intermediary results")
	}
	return nil
}

// LoadConfig reads the YAML file at configPath over the defaults. A missing
// file yields the defaults unchanged.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to configPath, creating parent directories
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile writes the default configuration to configPath
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
