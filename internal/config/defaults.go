package config

import "github.com/spf13/viper"

// Application identity used for config discovery and env overrides.
const (
	AppName      = "timelapse"
	EnvPrefix    = "TIMELAPSE"
	EnvConfigDir = "TIMELAPSE_CONFIG_DIR"
)

// Default configuration values.
const (
	DefaultLogLevel      = "info"
	DefaultLogFile       = "~/.config/timelapse/timelapse.log"
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3

	DefaultGameRoot      = "."
	DefaultGameExportDir = "MapExport"

	DefaultArchivePrefix = "timelapse"

	DefaultCaptureTarget     = "Farm"
	DefaultCaptureScope      = "all"
	DefaultCaptureExtension  = ".png"
	DefaultCaptureLocation   = "Farm"
	DefaultCaptureNaming     = NamingDate
	DefaultCaptureDetection  = DetectionPoll
	DefaultCaptureMode       = ModeMove
	DefaultCaptureDebounceMs = 250

	DefaultTriggerKind = TriggerStdout

	DefaultDaemonHTTPBind          = "127.0.0.1"
	DefaultDaemonHTTPPort          = 0 // disabled
	DefaultDaemonShutdownTimeoutMs = 5000
)

// Recognized enumerated values.
const (
	NamingDate     = "date"
	NamingSequence = "sequence"

	DetectionPoll   = "poll"
	DetectionNotify = "notify"

	ModeMove = "move"
	ModeCopy = "copy"

	TriggerStdout  = "stdout"
	TriggerCommand = "command"
	TriggerNone    = "none"
)

// setDefaults registers all default configuration values with a viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log_max_backups", DefaultLogMaxBackups)

	v.SetDefault("game.root", DefaultGameRoot)
	v.SetDefault("game.export_dir", DefaultGameExportDir)

	v.SetDefault("archive.prefix", DefaultArchivePrefix)

	v.SetDefault("capture.target", DefaultCaptureTarget)
	v.SetDefault("capture.scope", DefaultCaptureScope)
	v.SetDefault("capture.extension", DefaultCaptureExtension)
	v.SetDefault("capture.location", DefaultCaptureLocation)
	v.SetDefault("capture.naming", DefaultCaptureNaming)
	v.SetDefault("capture.detection", DefaultCaptureDetection)
	v.SetDefault("capture.mode", DefaultCaptureMode)
	v.SetDefault("capture.debounce_ms", DefaultCaptureDebounceMs)

	v.SetDefault("trigger.kind", DefaultTriggerKind)
	v.SetDefault("trigger.command", []string{})

	v.SetDefault("daemon.http_bind", DefaultDaemonHTTPBind)
	v.SetDefault("daemon.http_port", DefaultDaemonHTTPPort)
	v.SetDefault("daemon.pid_file", "")
	v.SetDefault("daemon.shutdown_timeout_ms", DefaultDaemonShutdownTimeoutMs)
}

// NewDefaultConfig returns a Config populated with default values.
func NewDefaultConfig() Config {
	return Config{
		LogLevel:      DefaultLogLevel,
		LogFile:       DefaultLogFile,
		LogMaxSizeMB:  DefaultLogMaxSizeMB,
		LogMaxBackups: DefaultLogMaxBackups,
		Game: GameConfig{
			Root:      DefaultGameRoot,
			ExportDir: DefaultGameExportDir,
		},
		Archive: ArchiveConfig{
			Prefix: DefaultArchivePrefix,
		},
		Capture: CaptureConfig{
			Target:     DefaultCaptureTarget,
			Scope:      DefaultCaptureScope,
			Extension:  DefaultCaptureExtension,
			Location:   DefaultCaptureLocation,
			Naming:     DefaultCaptureNaming,
			Detection:  DefaultCaptureDetection,
			Mode:       DefaultCaptureMode,
			DebounceMs: DefaultCaptureDebounceMs,
		},
		Trigger: TriggerConfig{
			Kind:    DefaultTriggerKind,
			Command: []string{},
		},
		Daemon: DaemonConfig{
			HTTPBind:          DefaultDaemonHTTPBind,
			HTTPPort:          DefaultDaemonHTTPPort,
			ShutdownTimeoutMs: DefaultDaemonShutdownTimeoutMs,
		},
	}
}
