// Package config handles configuration loading, validation, and management for textreplay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"textreplay/internal/focus"
	"textreplay/internal/logging"
	"textreplay/internal/replay"
	"textreplay/internal/tracing"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete textreplay configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Focus selects the replayed application and how focus events map to it.
	Focus FocusConfig `toml:"focus" json:"focus" yaml:"focus"`

	// Replay configures the reconstruction fold.
	Replay ReplayConfig `toml:"replay" json:"replay" yaml:"replay"`

	// Input configures how event logs are read.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Storage configures the run store.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Watch configures re-running reconstruction when a log file changes.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// Telemetry configures metrics and trace export.
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry" yaml:"telemetry"`
}

// FocusConfig holds focus classification settings.
type FocusConfig struct {
	// Target is the application whose events are replayed: WORD, EXPLORER or TASKBAR.
	Target string `toml:"target" json:"target" yaml:"target"`

	// WordTitle is the window title fragment identifying the word processor.
	WordTitle string `toml:"word_title" json:"word_title" yaml:"word_title"`

	// BrowserTitle is the window title fragment identifying the browser.
	BrowserTitle string `toml:"browser_title" json:"browser_title" yaml:"browser_title"`
}

// ReplayConfig holds reconstruction settings.
type ReplayConfig struct {
	// ContextSize is the number of characters quoted on each side of the
	// cursor in discrepancy diagnostics.
	ContextSize int `toml:"context_size" json:"context_size" yaml:"context_size"`

	// SkipTextLoad treats the first text appearance on a non-keystroke
	// event as the seed loading.
	SkipTextLoad bool `toml:"skip_text_load" json:"skip_text_load" yaml:"skip_text_load"`

	// KeepSteps stores every changed step with the run.
	KeepSteps bool `toml:"keep_steps" json:"keep_steps" yaml:"keep_steps"`
}

// InputConfig holds event log reader settings.
type InputConfig struct {
	// Format is "auto", "xml" or "json". Auto picks by file extension.
	Format string `toml:"format" json:"format" yaml:"format"`

	// ValidateSchema validates JSON logs against the event log schema.
	ValidateSchema bool `toml:"validate_schema" json:"validate_schema" yaml:"validate_schema"`
}

// StorageConfig holds run store settings.
type StorageConfig struct {
	// Enabled records every run in the SQLite store.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// KeepRuns is how many runs are kept per event log; older ones are
	// pruned after each run is recorded. Zero keeps every run.
	KeepRuns int `toml:"keep_runs" json:"keep_runs" yaml:"keep_runs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, file or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file used when Output is file or both.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// WatchConfig holds log watching settings.
type WatchConfig struct {
	// DebounceMs is how long a log file must be quiet before it is replayed.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// TelemetryConfig holds metrics and tracing settings.
type TelemetryConfig struct {
	// MetricsPath is a Prometheus text file rewritten after every run.
	// Empty disables metrics export.
	MetricsPath string `toml:"metrics_path" json:"metrics_path" yaml:"metrics_path"`

	// Trace exports an OpenTelemetry span per run.
	Trace bool `toml:"trace" json:"trace" yaml:"trace"`

	// TracePath is the file spans are appended to. Empty means stderr.
	TracePath string `toml:"trace_path" json:"trace_path" yaml:"trace_path"`

	// TraceSampleRatio is the fraction of runs traced, in (0, 1].
	TraceSampleRatio float64 `toml:"trace_sample_ratio" json:"trace_sample_ratio" yaml:"trace_sample_ratio"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	rules := focus.DefaultRules()
	dir := DataDir()

	return &Config{
		Version: Version,
		Focus: FocusConfig{
			Target:       string(focus.StateWord),
			WordTitle:    rules.WordTitle,
			BrowserTitle: rules.BrowserTitle,
		},
		Replay: ReplayConfig{
			ContextSize: replay.DefaultContextSize,
		},
		Input: InputConfig{
			Format:         "auto",
			ValidateSchema: true,
		},
		Storage: StorageConfig{
			Enabled: false,
			Path:    filepath.Join(dir, "runs.db"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: filepath.Join(PlatformLogDir(), "textreplay.log"),
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
		Telemetry: TelemetryConfig{
			TraceSampleRatio: 1,
		},
	}
}

// DataDir returns the base textreplay data directory.
// TEXTREPLAY_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("TEXTREPLAY_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	if c.Telemetry.MetricsPath != "" {
		dirs = append(dirs, filepath.Dir(c.Telemetry.MetricsPath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with TEXTREPLAY_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	// Focus overrides
	if v := os.Getenv("TEXTREPLAY_FOCUS_TARGET"); v != "" {
		c.Focus.Target = v
	}
	if v := os.Getenv("TEXTREPLAY_WORD_TITLE"); v != "" {
		c.Focus.WordTitle = v
	}

	// Replay overrides
	if v := os.Getenv("TEXTREPLAY_CONTEXT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Replay.ContextSize = n
		}
	}
	if v := os.Getenv("TEXTREPLAY_SKIP_TEXT_LOAD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Replay.SkipTextLoad = b
		}
	}

	// Storage overrides
	if v := os.Getenv("TEXTREPLAY_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
		c.Storage.Enabled = true
	}
	if v := os.Getenv("TEXTREPLAY_KEEP_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.KeepRuns = n
		}
	}

	// Logging overrides
	if v := os.Getenv("TEXTREPLAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TEXTREPLAY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("TEXTREPLAY_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Telemetry overrides
	if v := os.Getenv("TEXTREPLAY_METRICS_PATH"); v != "" {
		c.Telemetry.MetricsPath = v
	}
	if v := os.Getenv("TEXTREPLAY_TRACE_PATH"); v != "" {
		c.Telemetry.TracePath = v
		c.Telemetry.Trace = true
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// FocusRules returns the focus classification rules.
func (c *Config) FocusRules() focus.Rules {
	rules := focus.DefaultRules()
	if c.Focus.WordTitle != "" {
		rules.WordTitle = c.Focus.WordTitle
	}
	if c.Focus.BrowserTitle != "" {
		rules.BrowserTitle = c.Focus.BrowserTitle
	}
	return rules
}

// ReplayOptions builds reconstruction options from the configuration.
func (c *Config) ReplayOptions(logger *slog.Logger) (replay.Options, error) {
	target, ok := focus.ParseState(c.Focus.Target)
	if !ok {
		return replay.Options{}, fmt.Errorf("unknown focus target %q", c.Focus.Target)
	}
	return replay.Options{
		Target:       target,
		Rules:        c.FocusRules(),
		ContextSize:  c.Replay.ContextSize,
		SkipTextLoad: c.Replay.SkipTextLoad,
		Logger:       logger,
	}, nil
}

// TracingConfig converts the telemetry section into a tracing configuration.
func (c *Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:     c.Telemetry.Trace,
		Path:        c.Telemetry.TracePath,
		SampleRatio: c.Telemetry.TraceSampleRatio,
	}
}

// LoggerConfig converts the logging section into a logger configuration.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	return lc, nil
}
