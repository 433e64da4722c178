package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func formatOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

func decodeJSON(data []byte, cfg *Config) error {
	return json.Unmarshal(data, cfg)
}

func decodeYAML(data []byte, cfg *Config) error {
	return yaml.Unmarshal(data, cfg)
}

// Loader loads a config file and caches the result, with an explicit
// Reload for hosts that want to pick up edits without restarting.
// Adapted from witnessd's config.Loader, trimmed of its fsnotify-driven
// watch loop: a library surface is reloaded on the embedding host's own
// schedule rather than watching the filesystem on the package's behalf.
type Loader struct {
	path     string
	mu       sync.RWMutex
	config   *Config
	onChange []func(*Config)
}

// NewLoader creates a loader for the config file at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads, validates, and caches the configuration.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

func (l *Loader) loadLocked() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	l.config = cfg
	return cfg, nil
}

// Config returns the most recently loaded configuration, or nil if Load
// has not yet been called.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers a callback invoked after a successful Reload.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Reload re-reads the config file and, if it parses and validates,
// replaces the cached configuration and notifies OnChange callbacks. A
// failed reload leaves the previously loaded configuration in place.
func (l *Loader) Reload() (*Config, error) {
	l.mu.Lock()
	cfg, err := l.loadLocked()
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	if err != nil {
		return nil, err
	}
	for _, cb := range callbacks {
		cb(cfg)
	}
	return cfg, nil
}

// LoadOrCreate loads the config at path, writing DefaultConfig there
// first if it doesn't exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// SaveConfig writes cfg to path in TOML form, creating parent
// directories as needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
