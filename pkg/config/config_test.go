package config

import (
	"os"
	"path/filepath"
	"testing"
)

// validConfig returns a configuration that passes validation
func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Input.VolumePath = "/data/volume.raw"
	cfg.Input.Depth = 100
	cfg.Input.Height = 200
	cfg.Input.Width = 200
	cfg.Output.Dir = "/data/out"
	return cfg
}

// TestDefaultConfig verifies the defaults a bare configuration starts from
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.Sigma != 1.0 {
		t.Errorf("Default sigma = %f, want 1.0", cfg.Processing.Sigma)
	}
	if cfg.Processing.Rho != 3.0 {
		t.Errorf("Default rho = %f, want 3.0", cfg.Processing.Rho)
	}
	if cfg.Processing.NumCores < 1 {
		t.Error("Default core count must be at least 1")
	}
	if cfg.Processing.NumChunks != 1 {
		t.Errorf("Default chunk count = %d, want 1", cfg.Processing.NumChunks)
	}
	if cfg.Output.Format != "tif" || cfg.Output.Type != "8bit" {
		t.Errorf("Default output encoding %s/%s, want tif/8bit", cfg.Output.Format, cfg.Output.Type)
	}
	if !cfg.Output.Vectors {
		t.Error("Vector output should default to enabled")
	}
	if cfg.Test.NumSlices != 5 {
		t.Errorf("Default test slice count = %d, want 5", cfg.Test.NumSlices)
	}
}

// TestValidate verifies each rejection rule independently
func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Valid configuration rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing volume path", func(c *Config) { c.Input.VolumePath = "" }},
		{"zero depth", func(c *Config) { c.Input.Depth = 0 }},
		{"negative height", func(c *Config) { c.Input.Height = -1 }},
		{"mask without dimensions", func(c *Config) { c.Input.MaskPath = "/data/mask.raw" }},
		{"zero sigma", func(c *Config) { c.Processing.Sigma = 0 }},
		{"negative rho", func(c *Config) { c.Processing.Rho = -1 }},
		{"zero cores", func(c *Config) { c.Processing.NumCores = 0 }},
		{"zero chunks", func(c *Config) { c.Processing.NumChunks = 0 }},
		{"zero voxel size", func(c *Config) { c.Processing.VoxelSize = 0 }},
		{"missing output dir", func(c *Config) { c.Output.Dir = "" }},
		{"unknown image type", func(c *Config) { c.Output.Type = "12bit" }},
		{"test mode without slices", func(c *Config) {
			c.Test.Enabled = true
			c.Test.NumSlices = 0
		}},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("Case %q: expected validation error", tc.name)
		}
	}

	// Test mode relaxes the output directory requirement
	cfg := validConfig()
	cfg.Output.Dir = ""
	cfg.Test.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Test mode without output dir rejected: %v", err)
	}
}

// TestSaveAndLoadConfig verifies the YAML round trip
func TestSaveAndLoadConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Processing.Sigma = 2.5
	cfg.Processing.Analytic = true
	cfg.Geometry.MitralValve = [3]float64{10, 20, 30}
	cfg.Geometry.Flip = true
	cfg.Output.Type = "16bit"

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Processing.Sigma != 2.5 {
		t.Errorf("Loaded sigma = %f, want 2.5", loaded.Processing.Sigma)
	}
	if !loaded.Processing.Analytic {
		t.Error("Analytic flag lost in the round trip")
	}
	if loaded.Geometry.MitralValve != [3]float64{10, 20, 30} {
		t.Errorf("Loaded mitral valve landmark %v", loaded.Geometry.MitralValve)
	}
	if !loaded.Geometry.Flip {
		t.Error("Flip flag lost in the round trip")
	}
	if loaded.Output.Type != "16bit" {
		t.Errorf("Loaded output type %s, want 16bit", loaded.Output.Type)
	}
}

// TestLoadConfigMissingFile verifies a missing file falls back to defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.Sigma != 1.0 {
		t.Errorf("Fallback sigma = %f, want the default 1.0", cfg.Processing.Sigma)
	}
}

// TestLoadConfigRejectsInvalid verifies an invalid file fails to load
func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("input:\n  volumePath: \"\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for a configuration missing the volume path")
	}

	if err := os.WriteFile(path, []byte("{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

// TestCreateDefaultConfigFile verifies the generated template file loads back
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Config file not created: %v", err)
	}
}
