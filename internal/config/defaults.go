// Package config handles configuration loading and validation for
// typingproof: TOML-first (github.com/BurntSushi/toml), with JSON/YAML
// fallback and an explicit Loader.Reload for hosts that want to pick up
// edits without restarting, trimmed from witnessd's multi-subsystem
// daemon config down to the settings a typing-proof core and its
// storage/signing/schema adapters actually need.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/typingproof/
//   - Linux:   ~/.local/share/typingproof/
//   - Windows: %APPDATA%\typingproof\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return linuxDataDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return linuxConfigDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSLogDir()
	case "linux":
		return filepath.Join(linuxDataDir(), "logs")
	case "windows":
		return windowsLogDir()
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

func macOSDataDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Application Support", "typingproof")
}

func macOSLogDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Logs", "typingproof")
}

func linuxDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "typingproof")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "typingproof")
}

func linuxConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "typingproof")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "typingproof")
}

func windowsDataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "typingproof")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Roaming", "typingproof")
}

func windowsLogDir() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "typingproof", "logs")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Local", "typingproof", "logs")
}

func fallbackDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".typingproof")
}

// DefaultPaths bundles the file locations DefaultConfig fills in.
type DefaultPaths struct {
	ConfigFile     string
	StorePath      string
	SigningKeyFile string
	PublicKeyFile  string
	SchemaPath     string
	LogFile        string
}

// GetDefaultPaths returns all default paths for the current platform.
func GetDefaultPaths() *DefaultPaths {
	dataDir := PlatformDataDir()
	configDir := PlatformConfigDir()
	logDir := PlatformLogDir()

	return &DefaultPaths{
		ConfigFile:     filepath.Join(configDir, "config.toml"),
		StorePath:      filepath.Join(dataDir, "events.db"),
		SigningKeyFile: filepath.Join(dataDir, "checkpoint_signing_key"),
		PublicKeyFile:  filepath.Join(dataDir, "checkpoint_signing_key.pub"),
		SchemaPath:     filepath.Join(configDir, "schema"),
		LogFile:        filepath.Join(logDir, "typingproof.log"),
	}
}

// SupportedConfigFormats lists the file extensions Load recognizes.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches standard locations for a config file, returning
// the first match or "" if none exists.
func FindConfigFile() string {
	paths := GetDefaultPaths()
	searchDirs := []string{".", PlatformConfigDir(), filepath.Dir(paths.ConfigFile)}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
