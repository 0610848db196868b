package config

import (
	"errors"
	"fmt"
	"strings"

	"textreplay/internal/focus"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// ErrInvalidConfig is matched by every ValidationErrors value.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig checks every section and reports all problems at once.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateFocus(&c.Focus)...)
	errs = append(errs, validateReplay(&c.Replay)...)
	errs = append(errs, validateInput(&c.Input)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateWatch(&c.Watch)...)
	errs = append(errs, validateTelemetry(&c.Telemetry)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateFocus(f *FocusConfig) ValidationErrors {
	var errs ValidationErrors

	if _, ok := focus.ParseState(f.Target); !ok {
		errs = append(errs, ValidationError{
			Field:   "focus.target",
			Message: fmt.Sprintf("invalid target: %s (valid: WORD, EXPLORER, TASKBAR, UNKNOWN)", f.Target),
		})
	}
	if strings.TrimSpace(f.WordTitle) == "" {
		errs = append(errs, *RequiredFieldError("focus.word_title"))
	}

	return errs
}

func validateReplay(r *ReplayConfig) ValidationErrors {
	var errs ValidationErrors

	if r.ContextSize < 0 || r.ContextSize > 1000 {
		errs = append(errs, *RangeError("replay.context_size", 0, 1000))
	}

	return errs
}

func validateInput(i *InputConfig) ValidationErrors {
	var errs ValidationErrors

	switch i.Format {
	case "auto", "xml", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "input.format",
			Message: fmt.Sprintf("invalid input format: %s (valid: auto, xml, json)", i.Format),
		})
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Enabled && s.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "database path is required when storage is enabled",
		})
	}
	if s.KeepRuns < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.keep_runs",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file' or 'both'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	return errs
}

func validateWatch(w *WatchConfig) ValidationErrors {
	var errs ValidationErrors

	if w.DebounceMs < 0 || w.DebounceMs > 60000 {
		errs = append(errs, *RangeError("watch.debounce_ms", 0, 60000))
	}

	return errs
}

func validateTelemetry(t *TelemetryConfig) ValidationErrors {
	var errs ValidationErrors

	if t.Trace && (t.TraceSampleRatio <= 0 || t.TraceSampleRatio > 1) {
		errs = append(errs, ValidationError{
			Field:   "telemetry.trace_sample_ratio",
			Message: "must be greater than 0 and at most 1",
		})
	}

	return errs
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
