package config

import "time"

// Config is the root configuration structure for the application.
type Config struct {
	LogLevel      string        `yaml:"log_level" toml:"log_level" mapstructure:"log_level"`
	LogFile       string        `yaml:"log_file" toml:"log_file" mapstructure:"log_file"`
	LogMaxSizeMB  int           `yaml:"log_max_size_mb" toml:"log_max_size_mb" mapstructure:"log_max_size_mb"`
	LogMaxBackups int           `yaml:"log_max_backups" toml:"log_max_backups" mapstructure:"log_max_backups"`
	Game          GameConfig    `yaml:"game" toml:"game" mapstructure:"game"`
	Archive       ArchiveConfig `yaml:"archive" toml:"archive" mapstructure:"archive"`
	Capture       CaptureConfig `yaml:"capture" toml:"capture" mapstructure:"capture"`
	Trigger       TriggerConfig `yaml:"trigger" toml:"trigger" mapstructure:"trigger"`
	Daemon        DaemonConfig  `yaml:"daemon" toml:"daemon" mapstructure:"daemon"`
}

// GameConfig locates the host installation and its export directory.
type GameConfig struct {
	// Root is the host's execution path; the export directory lives under it.
	Root string `yaml:"root" toml:"root" mapstructure:"root"`

	// ExportDir is the name of the directory the export command writes into.
	ExportDir string `yaml:"export_dir" toml:"export_dir" mapstructure:"export_dir"`
}

// ArchiveConfig controls archive directory naming.
type ArchiveConfig struct {
	Prefix string `yaml:"prefix" toml:"prefix" mapstructure:"prefix"`
}

// CaptureConfig controls what is captured, when, and how it is archived.
type CaptureConfig struct {
	Target     string `yaml:"target" toml:"target" mapstructure:"target"`
	Scope      string `yaml:"scope" toml:"scope" mapstructure:"scope"`
	Extension  string `yaml:"extension" toml:"extension" mapstructure:"extension"`
	Location   string `yaml:"location" toml:"location" mapstructure:"location"`
	Naming     string `yaml:"naming" toml:"naming" mapstructure:"naming"`
	Detection  string `yaml:"detection" toml:"detection" mapstructure:"detection"`
	Mode       string `yaml:"mode" toml:"mode" mapstructure:"mode"`
	DebounceMs int    `yaml:"debounce_ms" toml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Debounce returns the notify-path debounce window as a duration.
func (c CaptureConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// TriggerConfig selects how the export command is invoked on the host.
type TriggerConfig struct {
	Kind    string   `yaml:"kind" toml:"kind" mapstructure:"kind"`
	Command []string `yaml:"command,flow" toml:"command" mapstructure:"command"`
}

// DaemonConfig holds the run loop and optional status server configuration.
type DaemonConfig struct {
	HTTPBind          string `yaml:"http_bind" toml:"http_bind" mapstructure:"http_bind"`
	HTTPPort          int    `yaml:"http_port" toml:"http_port" mapstructure:"http_port"` // 0 = disabled
	PIDFile           string `yaml:"pid_file" toml:"pid_file" mapstructure:"pid_file"`    // empty = disabled
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms" toml:"shutdown_timeout_ms" mapstructure:"shutdown_timeout_ms"`
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (c DaemonConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}
