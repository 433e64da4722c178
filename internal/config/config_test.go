package config

import (
	"os"
	"path/filepath"
	"testing"

	"typingproof/internal/checkpoint"
	"typingproof/internal/posw"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PoSWIterations != posw.DefaultIterations {
		t.Errorf("PoSWIterations = %d, want %d", cfg.PoSWIterations, posw.DefaultIterations)
	}
	if cfg.CheckpointInterval != checkpoint.DefaultInterval {
		t.Errorf("CheckpointInterval = %d, want %d", cfg.CheckpointInterval, checkpoint.DefaultInterval)
	}
	if cfg.StorePath == "" {
		t.Error("StorePath should not be empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate cleanly, got %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoSWIterations != posw.DefaultIterations {
		t.Errorf("expected default PoSWIterations, got %d", cfg.PoSWIterations)
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := `
posw_iterations = 500
checkpoint_interval = 10
store_path = "/tmp/events.db"
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoSWIterations != 500 {
		t.Errorf("PoSWIterations = %d, want 500", cfg.PoSWIterations)
	}
	if cfg.CheckpointInterval != 10 {
		t.Errorf("CheckpointInterval = %d, want 10", cfg.CheckpointInterval)
	}
	if cfg.StorePath != "/tmp/events.db" {
		t.Errorf("StorePath = %q, want /tmp/events.db", cfg.StorePath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadJSONFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	contents := `{"posw_iterations": 250, "checkpoint_interval": 25, "store_path": "/tmp/e.db"}`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoSWIterations != 250 {
		t.Errorf("PoSWIterations = %d, want 250", cfg.PoSWIterations)
	}
}

func TestLoadYAMLFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	contents := "posw_iterations: 750\ncheckpoint_interval: 50\nstore_path: /tmp/e.db\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoSWIterations != 750 {
		t.Errorf("PoSWIterations = %d, want 750", cfg.PoSWIterations)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"zero posw iterations", func(c *Config) { c.PoSWIterations = 0 }, true},
		{"zero checkpoint interval", func(c *Config) { c.CheckpointInterval = 0 }, true},
		{"empty store path", func(c *Config) { c.StorePath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOrCreateWritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	if !created {
		t.Error("expected created = true on first call")
	}
	if cfg.PoSWIterations != posw.DefaultIterations {
		t.Errorf("PoSWIterations = %d, want default", cfg.PoSWIterations)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to exist at %s: %v", path, err)
	}

	cfg2, created2, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate() second call error = %v", err)
	}
	if created2 {
		t.Error("expected created = false on second call")
	}
	if cfg2.PoSWIterations != cfg.PoSWIterations {
		t.Error("second load should match first")
	}
}

func TestLoaderReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("posw_iterations = 100\ncheckpoint_interval = 10\nstore_path = \"/tmp/e.db\"\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	l := NewLoader(path)

	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PoSWIterations != 100 {
		t.Errorf("PoSWIterations = %d, want 100", cfg.PoSWIterations)
	}

	var notified *Config
	l.OnChange(func(c *Config) { notified = c })

	if err := os.WriteFile(path, []byte("posw_iterations = 200\ncheckpoint_interval = 10\nstore_path = \"/tmp/e.db\"\n"), 0600); err != nil {
		t.Fatalf("rewrite config error = %v", err)
	}

	reloadedCfg, err := l.Reload()
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if reloadedCfg.PoSWIterations != 200 {
		t.Errorf("Reload() PoSWIterations = %d, want 200", reloadedCfg.PoSWIterations)
	}
	if notified == nil || notified.PoSWIterations != 200 {
		t.Errorf("OnChange callback not invoked with reloaded config")
	}
	if l.Config().PoSWIterations != 200 {
		t.Errorf("Config() after Reload() = %d, want 200", l.Config().PoSWIterations)
	}
}

func TestLoaderReloadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("posw_iterations = 100\ncheckpoint_interval = 10\nstore_path = \"/tmp/e.db\"\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("posw_iterations = 0\ncheckpoint_interval = 10\nstore_path = \"/tmp/e.db\"\n"), 0600); err != nil {
		t.Fatalf("rewrite config error = %v", err)
	}

	if _, err := l.Reload(); err == nil {
		t.Error("expected Reload() to reject an invalid config")
	}
	if l.Config().PoSWIterations != 100 {
		t.Errorf("Config() after failed reload = %d, want previous value 100", l.Config().PoSWIterations)
	}
}
