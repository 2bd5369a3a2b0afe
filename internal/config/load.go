package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the viewer cannot run with.
func (c *Config) Validate() error {
	if c.Assets.Workers < 1 {
		return fmt.Errorf("assets.workers must be at least 1, got %d", c.Assets.Workers)
	}
	if c.Viewer.MaxRetries < 0 {
		return fmt.Errorf("viewer.max_retries must not be negative, got %d", c.Viewer.MaxRetries)
	}
	if c.Viewer.RunFor < 0 {
		return fmt.Errorf("viewer.run_for must not be negative, got %v", c.Viewer.RunFor)
	}
	if (c.Assets.KeyFile == "") != (c.Assets.MaskFile == "") {
		return fmt.Errorf("assets.key_file and assets.mask_file must be set together")
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "RailRush")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "RailRush")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "railrush")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "railrush")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
