// Package logging builds the slog loggers textreplay writes its operational
// log with.
//
// A Logger writes text or JSON records to stderr, stdout, a file or both a
// file and stderr. Records emitted during a replay carry the run ID, taken
// either from WithRun or from a context built with ContextWithRunID.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level is a slog level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the record encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config describes a Logger.
type Config struct {
	Level  Level
	Format Format

	// Output is "stderr", "stdout", "file" or "both" (file and stderr).
	Output string

	// FilePath is appended to when Output is "file" or "both".
	FilePath string

	AddSource bool

	// Component is attached to every record when set.
	Component string
}

// DefaultConfig returns a text logger at info level on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:     LevelInfo,
		Format:    FormatText,
		Output:    "stderr",
		Component: "textreplay",
	}
}

// Logger is a slog.Logger that may own a log file.
type Logger struct {
	*slog.Logger
	out *sink
}

// sink is the log file shared by a Logger and the loggers derived from it.
type sink struct {
	mu   sync.Mutex
	file *os.File
}

func (s *sink) close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// New opens the outputs named by cfg and returns a Logger writing to them.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		w   io.Writer
		out *sink
	)
	switch output := strings.ToLower(cfg.Output); output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	case "file", "both":
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		out = &sink{file: f}
		w = f
		if output == "both" {
			w = io.MultiWriter(os.Stderr, f)
		}
	default:
		return nil, fmt.Errorf("unknown log output: %s", cfg.Output)
	}

	return &Logger{Logger: slog.New(handlerFor(w, cfg)), out: out}, nil
}

// NewWithWriter returns a Logger writing to w. cfg.Output is ignored.
func NewWithWriter(w io.Writer, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Logger{Logger: slog.New(handlerFor(w, cfg))}
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func handlerFor(w io.Writer, cfg *Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	if cfg.Component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}
	return h
}

func (l *Logger) derive(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), out: l.out}
}

// WithRun tags records with a run ID and the replayed log.
func (l *Logger) WithRun(runID, logPath string) *Logger {
	return l.derive(slog.String("run_id", runID), slog.String("log_path", logPath))
}

// WithContext tags records with the run ID carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RunIDFromContext(ctx); id != "" {
		return l.derive(slog.String("run_id", id))
	}
	return l
}

// Close closes the log file. Loggers derived from l share it.
func (l *Logger) Close() error {
	return l.out.close()
}

// SetDefault makes l the process-wide slog default, so packages logging
// through slog directly end up in the same place.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

type runIDKey struct{}

// ContextWithRunID returns a copy of ctx carrying runID.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	if level, ok := levelNames[strings.ToLower(s)]; ok {
		return level, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// LevelString is the inverse of ParseLevel. Unknown levels read as "info".
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "info"
}

// ParseFormat parses "text" or "json". Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %s", s)
}
