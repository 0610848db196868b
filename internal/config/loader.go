package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// decoder parses one config document into cfg, overwriting only the fields
// the document sets.
type decoder func(data []byte, cfg *Config) error

func decodeTOML(data []byte, cfg *Config) error {
	_, err := toml.Decode(string(data), cfg)
	return err
}

func decodeJSON(data []byte, cfg *Config) error {
	return json.Unmarshal(data, cfg)
}

func decodeYAML(data []byte, cfg *Config) error {
	return yaml.Unmarshal(data, cfg)
}

var decoders = map[string]decoder{
	".toml": decodeTOML,
	".json": decodeJSON,
	".yaml": decodeYAML,
	".yml":  decodeYAML,
}

// sniffOrder is tried in turn for files without a known extension.
var sniffOrder = []string{".toml", ".json", ".yaml"}

// readFile decodes path over the defaults. A missing file yields the
// defaults unchanged.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if dec, ok := decoders[strings.ToLower(filepath.Ext(path))]; ok {
		cfg := DefaultConfig()
		if err := dec(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		return cfg, nil
	}

	for _, ext := range sniffOrder {
		cfg := DefaultConfig()
		if decoders[ext](data, cfg) == nil {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("parse %s: not TOML, JSON or YAML", filepath.Base(path))
}

// resolve reads path, applies the environment and validates the result.
func resolve(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Loader owns the configuration read from one file and, once Watch is
// called, replaces it whenever the file changes and still validates.
type Loader struct {
	path     string
	debounce time.Duration

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)

	fsw      *fsnotify.Watcher
	errs     chan error
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoader returns a Loader for path. Nothing is read until Load.
func NewLoader(path string) *Loader {
	return &Loader{
		path:     path,
		debounce: 100 * time.Millisecond,
		errs:     make(chan error, 1),
		stop:     make(chan struct{}),
	}
}

// Load reads and validates the file, making the result current.
func (l *Loader) Load() (*Config, error) {
	cfg, err := resolve(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the current configuration, nil before Load.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers fn to receive every configuration accepted by a reload.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Errors delivers read and validation failures seen while watching. Errors
// are dropped while one is already pending.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

// Watch starts reloading the file on change. The directory is watched since
// editors commonly save by renaming a new file into place.
func (l *Loader) Watch() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(l.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.fsw = fsw
	go l.loop(fsw)
	return nil
}

func (l *Loader) loop(fsw *fsnotify.Watcher) {
	name := filepath.Base(l.path)
	var (
		timer  *time.Timer
		settle <-chan time.Time
	)

	for {
		select {
		case <-l.stop:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			settle = timer.C

		case <-settle:
			settle = nil
			l.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

// reload keeps the current configuration when the file no longer parses or
// validates.
func (l *Loader) reload() {
	cfg, err := resolve(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	l.current = cfg
	listeners := append([]func(*Config)(nil), l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Close stops watching. It is safe to call more than once.
func (l *Loader) Close() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.stop)
		if l.fsw != nil {
			err = l.fsw.Close()
		}
	})
	return err
}

// SaveConfig writes cfg to path as TOML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encode TOML: %w", err)
	}
	return f.Close()
}

// LoadOrCreate loads path, first writing the defaults there if the file does
// not exist. created reports whether the file was written. An empty path
// means ConfigPath().
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg = DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err = resolve(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// override sets *dst to v unless v is the zero value. A false boolean
// therefore never overrides.
func override[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// Merge returns a copy of dst with every non-zero field of src applied. A
// storage path in src also enables storage, and a trace path enables
// tracing.
func Merge(dst, src *Config) *Config {
	out := dst.Clone()

	override(&out.Version, src.Version)

	override(&out.Focus.Target, src.Focus.Target)
	override(&out.Focus.WordTitle, src.Focus.WordTitle)
	override(&out.Focus.BrowserTitle, src.Focus.BrowserTitle)

	override(&out.Replay.ContextSize, src.Replay.ContextSize)
	override(&out.Replay.SkipTextLoad, src.Replay.SkipTextLoad)
	override(&out.Replay.KeepSteps, src.Replay.KeepSteps)

	override(&out.Input.Format, src.Input.Format)

	override(&out.Storage.Enabled, src.Storage.Enabled || src.Storage.Path != "")
	override(&out.Storage.Path, src.Storage.Path)
	override(&out.Storage.KeepRuns, src.Storage.KeepRuns)

	override(&out.Logging.Level, src.Logging.Level)
	override(&out.Logging.Format, src.Logging.Format)
	override(&out.Logging.Output, src.Logging.Output)
	override(&out.Logging.FilePath, src.Logging.FilePath)

	override(&out.Watch.DebounceMs, src.Watch.DebounceMs)

	override(&out.Telemetry.MetricsPath, src.Telemetry.MetricsPath)
	override(&out.Telemetry.Trace, src.Telemetry.Trace || src.Telemetry.TracePath != "")
	override(&out.Telemetry.TracePath, src.Telemetry.TracePath)
	override(&out.Telemetry.TraceSampleRatio, src.Telemetry.TraceSampleRatio)

	return out
}
