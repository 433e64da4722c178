// Package config handles configuration loading and validation for
// typingproof.
package config

import (
	"errors"
	"os"

	"github.com/BurntSushi/toml"

	"typingproof/internal/posw"
	"typingproof/internal/checkpoint"
)

// Config holds the settings an embedding host uses to construct a chain
// Builder and its supporting adapters.
type Config struct {
	// PoSWIterations overrides posw.DefaultIterations. Tests typically
	// set this to a small value; production leaves it at the wire
	// contract's 10,000 (§6 "Constants").
	PoSWIterations uint64 `toml:"posw_iterations" json:"posw_iterations" yaml:"posw_iterations"`

	// CheckpointInterval overrides checkpoint.DefaultInterval.
	CheckpointInterval uint64 `toml:"checkpoint_interval" json:"checkpoint_interval" yaml:"checkpoint_interval"`

	// StorePath is where the storage adapter persists the event and
	// checkpoint lists.
	StorePath string `toml:"store_path" json:"store_path" yaml:"store_path"`

	// SigningKeyPath is the optional Ed25519 key used to sign
	// checkpoints (additive, see checkpoint.Sign).
	SigningKeyPath string `toml:"signing_key_path" json:"signing_key_path" yaml:"signing_key_path"`

	// SchemaPath is the directory containing the exported-proof JSON
	// Schema documents.
	SchemaPath string `toml:"schema_path" json:"schema_path" yaml:"schema_path"`

	// LogPath, LogLevel, LogFormat configure the ambient logger.
	LogPath   string `toml:"log_path" json:"log_path" yaml:"log_path"`
	LogLevel  string `toml:"log_level" json:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" json:"log_format" yaml:"log_format"`
}

// DefaultConfig returns a configuration with the wire-contract defaults
// and platform-appropriate paths.
func DefaultConfig() *Config {
	paths := GetDefaultPaths()
	return &Config{
		PoSWIterations:     posw.DefaultIterations,
		CheckpointInterval: checkpoint.DefaultInterval,
		StorePath:          paths.StorePath,
		SigningKeyPath:     paths.SigningKeyFile,
		SchemaPath:         paths.SchemaPath,
		LogPath:            paths.LogFile,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return GetDefaultPaths().ConfigFile
}

// Load reads configuration from path, falling back to defaults overlaid
// with whatever the file sets. If the file doesn't exist, returns
// DefaultConfig unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := decodeInto(data, path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeInto(data []byte, path string, cfg *Config) error {
	ext := formatOf(path)
	switch ext {
	case "json":
		return decodeJSON(data, cfg)
	case "yaml", "yml":
		return decodeYAML(data, cfg)
	default:
		_, err := toml.Decode(string(data), cfg)
		return err
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.PoSWIterations == 0 {
		return errors.New("config: posw_iterations must be at least 1")
	}
	if c.CheckpointInterval == 0 {
		return errors.New("config: checkpoint_interval must be at least 1")
	}
	if c.StorePath == "" {
		return errors.New("config: store_path is required")
	}
	return nil
}
