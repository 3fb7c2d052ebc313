package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	// stateMu protects configFilePath and initialized
	stateMu sync.RWMutex

	// configFilePath stores the path to the loaded config file
	configFilePath string

	// initialized reports whether Init has completed successfully
	initialized bool
)

// Init initializes the configuration subsystem.
// It searches for configuration files in priority order:
//  1. Directory specified by TIMELAPSE_CONFIG_DIR environment variable
//  2. ~/.config/timelapse/
//  3. Current working directory (.)
//
// If no config file is found, defaults are used.
// If a config file exists but is invalid or unreadable, Init returns an error.
func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if envPath := os.Getenv(EnvConfigDir); envPath != "" {
		viper.AddConfigPath(envPath)
	}

	if home := os.Getenv("HOME"); home != "" {
		viper.AddConfigPath(filepath.Join(home, ".config", AppName))
	}

	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config; %w", err)
		}
	}

	stateMu.Lock()
	configFilePath = viper.ConfigFileUsed()
	initialized = true
	stateMu.Unlock()

	if configFilePath != "" {
		slog.Info("config initialized", "file", configFilePath)
	}

	return nil
}

// ConfigFilePath returns the path to the loaded config file,
// or empty string if using defaults only.
func ConfigFilePath() string {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return configFilePath
}

// Reset clears the configuration state for testing purposes.
func Reset() {
	viper.Reset()
	stateMu.Lock()
	configFilePath = ""
	initialized = false
	stateMu.Unlock()
}

// Get returns the typed configuration built from the global viper state.
// Returns nil if Init has not been called or the values cannot be decoded.
func Get() *Config {
	stateMu.RLock()
	ok := initialized
	stateMu.RUnlock()
	if !ok {
		return nil
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		slog.Error("failed to decode config", "error", err)
		return nil
	}
	return cfg
}

// MustGet returns the typed configuration or panics if it is unavailable.
func MustGet() *Config {
	cfg := Get()
	if cfg == nil {
		panic("config: MustGet called before Init")
	}
	return cfg
}

// GetString returns the string value for the given key.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns the integer value for the given key.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// Set sets a value for the given key, overriding defaults and config file values.
// Primarily used for testing and command-line flag overrides.
func Set(key string, value any) {
	viper.Set(key, value)
}

// GetPath returns the string value for the given key with ~ expanded to $HOME.
func GetPath(key string) string {
	return ExpandPath(viper.GetString(key))
}

// ExpandPath expands a leading ~ in path to the user's home directory.
// Only "~" alone or "~/..." are expanded; "~user" is returned unchanged.
func ExpandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	if len(path) > 1 && path[1] != '/' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if len(path) == 1 {
		return home
	}

	return filepath.Join(home, path[2:])
}

// GetConfigPath returns the path where the config file should be located.
// If a config file is loaded, returns its path. Otherwise returns the default path.
func GetConfigPath() string {
	if p := ConfigFilePath(); p != "" {
		return p
	}
	return DefaultConfigPath()
}
