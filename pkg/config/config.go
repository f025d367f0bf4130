// Package config provides configuration loading and management for afniplace.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores limits how many timepoints are unwarped concurrently
		NumCores int `yaml:"numCores" validate:"min=1"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// LogName is the run report file written into the output directory
		LogName string `yaml:"logName" validate:"required"`

		// Suffix is inserted before the view suffix of corrected datasets
		Suffix string `yaml:"suffix" validate:"required"`

		// Verbose echoes report lines to stdout
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// File is a rotating diagnostic log; empty logs to stderr
		File string `yaml:"file"`

		// MaxSize is the size in megabytes before the log is rotated
		MaxSize int `yaml:"maxSize" validate:"min=0"`

		// MaxAge is the number of days rotated logs are kept
		MaxAge int `yaml:"maxAge" validate:"min=0"`

		// Level is one of debug, info, warn, error
		Level string `yaml:"level" validate:"oneof=debug info warn error"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()

	cfg.Output.LogName = "PLACE_log.txt"
	cfg.Output.Suffix = "_pc"
	cfg.Output.Verbose = true

	cfg.Logging.MaxSize = 10
	cfg.Logging.MaxAge = 28
	cfg.Logging.Level = "info"

	return cfg
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
