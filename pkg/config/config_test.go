package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	if cfg.Output.Suffix != "_pc" {
		t.Errorf("Expected suffix _pc, got %s", cfg.Output.Suffix)
	}
	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least one core, got %d", cfg.Processing.NumCores)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got %v", err)
	}
	if cfg.Output.LogName != "PLACE_log.txt" {
		t.Errorf("Expected default log name, got %s", cfg.Output.LogName)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Processing.NumCores = 3
	cfg.Logging.Level = "debug"
	cfg.Logging.File = "/var/log/afniplace.log"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Processing.NumCores != 3 || loaded.Logging.Level != "debug" || loaded.Logging.File != cfg.Logging.File {
		t.Errorf("Config not preserved: %+v", loaded)
	}
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("processing:\n  numCores: 2\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Processing.NumCores != 2 {
		t.Errorf("Expected 2 cores, got %d", cfg.Processing.NumCores)
	}
	if cfg.Output.Suffix != "_pc" {
		t.Errorf("Expected default suffix to survive, got %s", cfg.Output.Suffix)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"zero cores":   "processing:\n  numCores: 0\n",
		"bad level":    "logging:\n  level: loud\n",
		"empty name":   "output:\n  logName: \"\"\n",
		"bad yaml":     "processing: [\n",
		"negative age": "logging:\n  maxAge: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
