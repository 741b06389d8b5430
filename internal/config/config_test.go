package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Sampling.Mode != "dense" {
		t.Errorf("Expected dense sampling by default, got %s", cfg.Sampling.Mode)
	}
	if cfg.Output.Prefix != "result" {
		t.Errorf("Expected prefix result, got %s", cfg.Output.Prefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"zero feature count", func(c *Config) { c.Sampling.FeatureCount = 0 }, "FeatureCount"},
		{"unknown mode", func(c *Config) { c.Sampling.Mode = "harris" }, "Mode"},
		{"unknown filter", func(c *Config) { c.Sampling.Filter = "bicubic" }, "Filter"},
		{"negative iterations", func(c *Config) { c.Sampling.MaxIterations = -1 }, "MaxIterations"},
		{"zero levels", func(c *Config) { c.Detector.Levels = 0 }, "Levels"},
		{"zero scale mul", func(c *Config) { c.Detector.ScaleMul = 0 }, "ScaleMul"},
		{"surf algorithm", func(c *Config) { c.Detector.Algorithm = "surf" }, "Algorithm"},
		{"empty prefix", func(c *Config) { c.Output.Prefix = "" }, "Prefix"},
		{"quality too high", func(c *Config) { c.Output.Quality = 101 }, "Quality"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected error to name %s, got %v", tt.field, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.Sampling.FeatureCount = 256
			cfg.Sampling.Resize = true
			cfg.Detector.Levels = 3
			cfg.Log.File = "densesift.log"

			if err := cfg.SaveToFile(path); err != nil {
				t.Fatalf("SaveToFile failed: %v", err)
			}

			loaded, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile failed: %v", err)
			}
			if *loaded != *cfg {
				t.Errorf("Round trip mismatch:\n%+v\n%+v", *loaded, *cfg)
			}
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "sampling:\n  feature_count: 42\n  resize: true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Sampling.FeatureCount != 42 || !cfg.Sampling.Resize {
		t.Errorf("Expected overrides to apply, got %+v", cfg.Sampling)
	}
	if cfg.Sampling.Mode != "dense" || cfg.Output.Prefix != "result" || cfg.Detector.ScaleMul != 0.1 {
		t.Errorf("Expected defaults for missing keys, got %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	if !strings.Contains(path, "densesift") {
		t.Errorf("Expected densesift in config path, got %s", path)
	}
}
