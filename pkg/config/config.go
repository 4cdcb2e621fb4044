// Package config provides configuration loading and management for cardiofiber.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
// Every recognized option is enumerated here with its type; there are no
// dynamically keyed parameters.
type Config struct {
	// Input parameters
	Input struct {
		// VolumePath is the path to the raw float32 volume file
		VolumePath string `yaml:"volumePath"`

		// MaskPath is the path to an optional raw mask file. Empty means
		// no mask is applied.
		MaskPath string `yaml:"maskPath"`

		// Depth, Height, Width are the volume dimensions (Z, Y, X) in voxels
		Depth  int `yaml:"depth"`
		Height int `yaml:"height"`
		Width  int `yaml:"width"`

		// MaskDepth, MaskHeight, MaskWidth are the native mask dimensions.
		// The mask may be sampled on a coarser Z grid than the volume.
		MaskDepth  int `yaml:"maskDepth"`
		MaskHeight int `yaml:"maskHeight"`
		MaskWidth  int `yaml:"maskWidth"`
	} `yaml:"input"`

	// Processing parameters
	Processing struct {
		// Sigma is the gradient smoothing scale of the structure tensor
		Sigma float64 `yaml:"sigma"`

		// Rho is the tensor averaging scale of the structure tensor
		Rho float64 `yaml:"rho"`

		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// NumChunks is the number of slice blocks the full index range is
		// split into for chunked, resumable runs
		NumChunks int `yaml:"numChunks"`

		// VoxelSize is the physical voxel size in micrometers
		VoxelSize float64 `yaml:"voxelSize"`

		// Analytic selects the closed-form eigen-decomposition path instead
		// of the gonum reference path. Both produce equivalent results.
		Analytic bool `yaml:"analytic"`
	} `yaml:"processing"`

	// Geometry parameters describing the anatomical reference frame
	Geometry struct {
		// MitralValve is the mitral valve landmark point as (X, Y, Z)
		MitralValve [3]float64 `yaml:"mitralValve"`

		// Apex is the apex landmark point as (X, Y, Z)
		Apex [3]float64 `yaml:"apex"`

		// Flip negates the center vector direction
		Flip bool `yaml:"flip"`
	} `yaml:"geometry"`

	// Output parameters
	Output struct {
		// Dir is the directory receiving per-slice artifacts
		Dir string `yaml:"dir"`

		// Format is the angle image format extension (currently "tif")
		Format string `yaml:"format"`

		// Type selects the angle image encoding, "8bit" or "16bit"
		Type string `yaml:"type"`

		// Vectors controls whether raw eigenvector slices are written
		Vectors bool `yaml:"vectors"`
	} `yaml:"output"`

	// Test parameters
	Test struct {
		// Enabled switches the pipeline into diagnostic mode: a fixed
		// number of slices is processed, previews are rendered in memory
		// and no artifacts are written
		Enabled bool `yaml:"enabled"`

		// NumSlices is the slice count processed in test mode
		NumSlices int `yaml:"numSlices"`
	} `yaml:"test"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Sigma = 1.0
	cfg.Processing.Rho = 3.0
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.NumChunks = 1
	cfg.Processing.VoxelSize = 1.0

	// Set default output parameters
	cfg.Output.Format = "tif"
	cfg.Output.Type = "8bit"
	cfg.Output.Vectors = true

	// Set default test parameters
	cfg.Test.NumSlices = 5

	return cfg
}

// LoadConfig loads configuration from a YAML file and validates it.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration once at load time. Components receive
// the validated struct by pointer and never re-check these invariants.
func (c *Config) Validate() error {
	if c.Input.VolumePath == "" {
		return fmt.Errorf("input.volumePath must be set")
	}
	if c.Input.Depth <= 0 || c.Input.Height <= 0 || c.Input.Width <= 0 {
		return fmt.Errorf("input dimensions must be positive, got %dx%dx%d",
			c.Input.Depth, c.Input.Height, c.Input.Width)
	}
	if c.Input.MaskPath != "" {
		if c.Input.MaskDepth <= 0 || c.Input.MaskHeight <= 0 || c.Input.MaskWidth <= 0 {
			return fmt.Errorf("mask dimensions must be positive when maskPath is set")
		}
	}
	if c.Processing.Sigma <= 0 || c.Processing.Rho <= 0 {
		return fmt.Errorf("sigma and rho must be positive, got sigma=%g rho=%g",
			c.Processing.Sigma, c.Processing.Rho)
	}
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("numCores must be at least 1")
	}
	if c.Processing.NumChunks < 1 {
		return fmt.Errorf("numChunks must be at least 1")
	}
	if c.Processing.VoxelSize <= 0 {
		return fmt.Errorf("voxelSize must be positive, got %g", c.Processing.VoxelSize)
	}
	if c.Output.Dir == "" && !c.Test.Enabled {
		return fmt.Errorf("output.dir must be set outside test mode")
	}
	switch c.Output.Type {
	case "8bit", "16bit":
	default:
		return fmt.Errorf("output.type must be \"8bit\" or \"16bit\", got %q", c.Output.Type)
	}
	if c.Test.Enabled && c.Test.NumSlices < 1 {
		return fmt.Errorf("test.numSlices must be at least 1 in test mode")
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
