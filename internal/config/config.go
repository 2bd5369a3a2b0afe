// Package config handles viewer and asset pipeline configuration.
package config

import (
	"runtime"
	"time"
)

// Config holds all runtime settings.
type Config struct {
	Assets  AssetsConfig  `yaml:"assets"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Logging LoggingConfig `yaml:"logging"`
}

// AssetsConfig describes where encrypted assets come from and how they are decoded.
type AssetsConfig struct {
	Root     string   `yaml:"root"`     // Directory source, used when no archives are set
	Archives []string `yaml:"archives"` // .pak bundles, later entries take priority
	Workers  int      `yaml:"workers"`  // Decrypt pool size
	KeyFile  string   `yaml:"key_file"` // 32-byte obfuscated key, raw
	MaskFile string   `yaml:"mask_file"`
}

// ViewerConfig holds the headless viewer settings.
type ViewerConfig struct {
	Model       string        `yaml:"model"`     // .hierarchy path relative to the source
	Animation   string        `yaml:"animation"` // optional .anim path
	TickRate    int           `yaml:"tick_rate"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RunFor      time.Duration `yaml:"run_for"` // how long to animate after the spawn
	Dump        bool          `yaml:"dump"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			Root:    "assets",
			Workers: defaultWorkers(),
		},
		Viewer: ViewerConfig{
			TickRate:    60,
			LoadTimeout: 30 * time.Second,
			MaxRetries:  1,
			Dump:        true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// TickInterval returns the duration of one viewer tick.
func (v ViewerConfig) TickInterval() time.Duration {
	if v.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(v.TickRate)
}
