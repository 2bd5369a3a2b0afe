package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Assets.Root != "assets" {
		t.Errorf("expected root 'assets', got %s", cfg.Assets.Root)
	}
	if cfg.Assets.Workers < 1 || cfg.Assets.Workers > 4 {
		t.Errorf("expected 1..4 workers, got %d", cfg.Assets.Workers)
	}
	if len(cfg.Assets.Archives) != 0 {
		t.Errorf("expected no archives by default, got %v", cfg.Assets.Archives)
	}

	if cfg.Viewer.TickRate != 60 {
		t.Errorf("expected tick rate 60, got %d", cfg.Viewer.TickRate)
	}
	if cfg.Viewer.LoadTimeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Viewer.LoadTimeout)
	}
	if cfg.Viewer.MaxRetries != 1 {
		t.Errorf("expected 1 retry, got %d", cfg.Viewer.MaxRetries)
	}
	if !cfg.Viewer.Dump {
		t.Error("expected dump to be enabled by default")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		rate int
		want time.Duration
	}{
		{60, time.Second / 60},
		{10, 100 * time.Millisecond},
		{0, time.Second / 60},
	}
	for _, tt := range tests {
		if got := (ViewerConfig{TickRate: tt.rate}).TickInterval(); got != tt.want {
			t.Errorf("TickInterval(%d) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
assets:
  root: "content/out"
  archives: ["base.pak", "patch.pak"]
  workers: 2
  key_file: "keys/key.bin"
  mask_file: "keys/mask.bin"

viewer:
  model: "Characters/Engineer.hierarchy"
  animation: "Animations/Idle.anim"
  tick_rate: 30
  load_timeout: 5s
  max_retries: 3
  run_for: 2s
  dump: false

logging:
  level: "debug"
  log_file: "viewer.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Assets.Root != "content/out" {
		t.Errorf("expected root content/out, got %s", cfg.Assets.Root)
	}
	if len(cfg.Assets.Archives) != 2 || cfg.Assets.Archives[1] != "patch.pak" {
		t.Errorf("unexpected archives %v", cfg.Assets.Archives)
	}
	if cfg.Assets.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Assets.Workers)
	}
	if cfg.Viewer.Model != "Characters/Engineer.hierarchy" {
		t.Errorf("unexpected model %s", cfg.Viewer.Model)
	}
	if cfg.Viewer.LoadTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Viewer.LoadTimeout)
	}
	if cfg.Viewer.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.Viewer.MaxRetries)
	}
	if cfg.Viewer.RunFor != 2*time.Second {
		t.Errorf("expected run_for 2s, got %v", cfg.Viewer.RunFor)
	}
	if cfg.Viewer.Dump {
		t.Error("expected dump to be false")
	}
	if cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("expected log file viewer.log, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidYAML := `
assets:
  workers: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero workers", func(c *Config) { c.Assets.Workers = 0 }, true},
		{"negative retries", func(c *Config) { c.Viewer.MaxRetries = -1 }, true},
		{"key without mask", func(c *Config) { c.Assets.KeyFile = "k.bin" }, true},
		{"key and mask", func(c *Config) {
			c.Assets.KeyFile = "k.bin"
			c.Assets.MaskFile = "m.bin"
		}, false},
		{"negative run_for", func(c *Config) { c.Viewer.RunFor = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("viewer:\n  tick_rate: 20\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Viewer.Model = "Props/Crate.hierarchy"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if loaded.Viewer.Model != "Props/Crate.hierarchy" {
		t.Errorf("expected saved model, got %q", loaded.Viewer.Model)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "root flag clears archives",
			setup: func() { *flagRoot = "/srv/assets" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Assets.Root != "/srv/assets" {
					t.Errorf("expected root /srv/assets, got %s", cfg.Assets.Root)
				}
				if cfg.Assets.Archives != nil {
					t.Errorf("expected archives cleared, got %v", cfg.Assets.Archives)
				}
			},
			teardown: func() { *flagRoot = "" },
		},
		{
			name: "model and anim flags",
			setup: func() {
				*flagModel = "Trains/Loco.hierarchy"
				*flagAnim = "Trains/Wheels.anim"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Viewer.Model != "Trains/Loco.hierarchy" {
					t.Errorf("unexpected model %s", cfg.Viewer.Model)
				}
				if cfg.Viewer.Animation != "Trains/Wheels.anim" {
					t.Errorf("unexpected animation %s", cfg.Viewer.Animation)
				}
			},
			teardown: func() {
				*flagModel = ""
				*flagAnim = ""
			},
		},
		{
			name:  "workers flag",
			setup: func() { *flagWorkers = 7 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Assets.Workers != 7 {
					t.Errorf("expected 7 workers, got %d", cfg.Assets.Workers)
				}
			},
			teardown: func() { *flagWorkers = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			cfg.Assets.Archives = []string{"base.pak"}
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
viewer:
  model: "FromFile.hierarchy"
  tick_rate: 24
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagModel = "FromFlag.hierarchy"
	defer func() {
		*flagConfig = ""
		*flagModel = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Viewer.Model != "FromFlag.hierarchy" {
		t.Errorf("expected model from flag, got %s", cfg.Viewer.Model)
	}
	if cfg.Viewer.TickRate != 24 {
		t.Errorf("expected tick rate 24 from file, got %d", cfg.Viewer.TickRate)
	}
}
