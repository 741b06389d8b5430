package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Sampling SamplingConfig `json:"sampling" yaml:"sampling"`
	Detector DetectorConfig `json:"detector" yaml:"detector"`
	Output   OutputConfig   `json:"output" yaml:"output"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// SamplingConfig holds configuration for keypoint placement
type SamplingConfig struct {
	FeatureCount   int    `json:"feature_count" yaml:"feature_count" validate:"gt=0"`
	Mode           string `json:"mode" yaml:"mode" validate:"oneof=dense dog"`
	Resize         bool   `json:"resize" yaml:"resize"`
	Filter         string `json:"filter" yaml:"filter" validate:"omitempty,oneof=lanczos catmullrom linear box nearest"`
	MaxIterations  int    `json:"max_iterations" yaml:"max_iterations" validate:"gte=0"`
	IterationSlack int    `json:"iteration_slack" yaml:"iteration_slack" validate:"gte=0"`
}

// DetectorConfig holds configuration for the grid detector
type DetectorConfig struct {
	Levels    int     `json:"levels" yaml:"levels" validate:"gte=1"`
	ScaleMul  float64 `json:"scale_mul" yaml:"scale_mul" validate:"gt=0"`
	VaryStep  bool    `json:"vary_step" yaml:"vary_step"`
	VaryBound bool    `json:"vary_bound" yaml:"vary_bound"`
	Algorithm string  `json:"algorithm" yaml:"algorithm" validate:"omitempty,oneof=sift"`
}

// OutputConfig holds configuration for output generation. The overlay is
// always written as "<prefix>_sift.png".
type OutputConfig struct {
	Prefix  string `json:"prefix" yaml:"prefix" validate:"required"`
	Quality int    `json:"quality" yaml:"quality" validate:"gte=1,lte=100"`
}

// LogConfig holds configuration for logging
type LogConfig struct {
	Level      string `json:"level" yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Sampling: SamplingConfig{
			FeatureCount:   100,
			Mode:           "dense",
			Resize:         false,
			Filter:         "lanczos",
			MaxIterations:  0,
			IterationSlack: 16,
		},
		Detector: DetectorConfig{
			Levels:    1,
			ScaleMul:  0.1,
			VaryStep:  true,
			VaryBound: false,
			Algorithm: "sift",
		},
		Output: OutputConfig{
			Prefix:  "result",
			Quality: 90,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxAgeDays: 28,
			MaxBackups: 3,
		},
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads configuration from a YAML or JSON file. Missing keys
// keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML or JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// GetConfigPath returns the configuration file path. An existing file in
// the XDG config directories wins; otherwise the user config location.
func GetConfigPath() string {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		if path, err := xdg.SearchConfigFile(filepath.Join("densesift", name)); err == nil {
			return path
		}
	}
	return filepath.Join(xdg.ConfigHome, "densesift", "config.yaml")
}
