package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leefowlercu/timelapse/internal/logging"
)

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

var validNaming = map[string]bool{
	NamingDate:     true,
	NamingSequence: true,
}

var validDetection = map[string]bool{
	DetectionPoll:   true,
	DetectionNotify: true,
}

var validModes = map[string]bool{
	ModeMove: true,
	ModeCopy: true,
}

var validTriggers = map[string]bool{
	TriggerStdout:  true,
	TriggerCommand: true,
	TriggerNone:    true,
}

// Validate checks the configuration for errors.
// Returns ValidationErrors if validation fails.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error; got %q", cfg.LogLevel),
		})
	}

	if cfg.LogMaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "log_max_size_mb",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.LogMaxSizeMB),
		})
	}

	if cfg.LogMaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "log_max_backups",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.LogMaxBackups),
		})
	}

	if cfg.Game.Root == "" {
		errs = append(errs, ValidationError{
			Field:   "game.root",
			Message: "must not be empty",
		})
	}

	errs = appendNameErrors(errs, "game.export_dir", cfg.Game.ExportDir)
	errs = appendNameErrors(errs, "archive.prefix", cfg.Archive.Prefix)
	errs = appendNameErrors(errs, "capture.target", cfg.Capture.Target)

	if cfg.Capture.Scope == "" {
		errs = append(errs, ValidationError{
			Field:   "capture.scope",
			Message: "must not be empty",
		})
	}

	if ext := cfg.Capture.Extension; ext != "" && (!strings.HasPrefix(ext, ".") || strings.ContainsAny(ext, `/\`)) {
		errs = append(errs, ValidationError{
			Field:   "capture.extension",
			Message: fmt.Sprintf("must be empty or start with '.', got %q", ext),
		})
	}

	if cfg.Capture.Location == "" {
		errs = append(errs, ValidationError{
			Field:   "capture.location",
			Message: "must not be empty",
		})
	}

	if !validNaming[cfg.Capture.Naming] {
		errs = append(errs, ValidationError{
			Field:   "capture.naming",
			Message: fmt.Sprintf("must be one of: date, sequence; got %q", cfg.Capture.Naming),
		})
	}

	if !validDetection[cfg.Capture.Detection] {
		errs = append(errs, ValidationError{
			Field:   "capture.detection",
			Message: fmt.Sprintf("must be one of: poll, notify; got %q", cfg.Capture.Detection),
		})
	}

	if !validModes[cfg.Capture.Mode] {
		errs = append(errs, ValidationError{
			Field:   "capture.mode",
			Message: fmt.Sprintf("must be one of: move, copy; got %q", cfg.Capture.Mode),
		})
	}

	if cfg.Capture.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "capture.debounce_ms",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Capture.DebounceMs),
		})
	}

	if !validTriggers[cfg.Trigger.Kind] {
		errs = append(errs, ValidationError{
			Field:   "trigger.kind",
			Message: fmt.Sprintf("must be one of: stdout, command, none; got %q", cfg.Trigger.Kind),
		})
	} else if cfg.Trigger.Kind == TriggerCommand && len(cfg.Trigger.Command) == 0 {
		errs = append(errs, ValidationError{
			Field:   "trigger.command",
			Message: "must not be empty when trigger.kind is command",
		})
	}

	if cfg.Daemon.HTTPPort < 0 || cfg.Daemon.HTTPPort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "daemon.http_port",
			Message: fmt.Sprintf("must be between 0 and 65535, got %d", cfg.Daemon.HTTPPort),
		})
	}

	if cfg.Daemon.HTTPPort > 0 && cfg.Daemon.HTTPBind == "" {
		errs = append(errs, ValidationError{
			Field:   "daemon.http_bind",
			Message: "must not be empty when daemon.http_port is set",
		})
	}

	if cfg.Daemon.ShutdownTimeoutMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "daemon.shutdown_timeout_ms",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Daemon.ShutdownTimeoutMs),
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// appendNameErrors validates a value used as a single path element.
func appendNameErrors(errs ValidationErrors, field, value string) ValidationErrors {
	switch {
	case value == "":
		return append(errs, ValidationError{Field: field, Message: "must not be empty"})
	case value == "." || value == ".." || strings.ContainsAny(value, `/\`):
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be a single path element, got %q", value),
		})
	}
	return errs
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
