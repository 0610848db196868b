package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"textreplay/internal/config"
	"textreplay/internal/inputlog"
	"textreplay/internal/logging"
	"textreplay/internal/metrics"
	"textreplay/internal/replay"
	"textreplay/internal/store"
	"textreplay/internal/tracing"
	"textreplay/internal/watcher"
)

// app holds the state shared by every replay of one command invocation.
type app struct {
	opts    *options
	loader  *config.Loader
	cfg     *config.Config
	logger  *logging.Logger
	store   *store.Store
	tracing *tracing.Provider
	metrics *metrics.ReplayMetrics
	stdout  io.Writer
	stderr  io.Writer
}

// configPath resolves the config file named on the command line or found in
// the search path.
func configPath(opts *options) string {
	if opts.configPath != "" {
		return opts.configPath
	}
	if path := config.FindConfigFile(); path != "" {
		return path
	}
	return config.ConfigPath()
}

func newApp(opts *options, stdout, stderr io.Writer) (*app, error) {
	path := configPath(opts)

	a := &app{
		opts:    opts,
		loader:  config.NewLoader(path),
		metrics: metrics.NewReplayMetrics(metrics.NewRegistry("textreplay")),
		stdout:  stdout,
		stderr:  stderr,
	}

	cfg, err := a.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := a.configure(cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// applyFlags returns cfg with command line flags applied over it.
func applyFlags(opts *options, cfg *config.Config) *config.Config {
	return config.Merge(cfg, &config.Config{
		Storage: config.StorageConfig{Path: opts.storePath},
		Logging: config.LoggingConfig{Level: opts.logLevel},
		Telemetry: config.TelemetryConfig{
			MetricsPath: opts.metrics,
			Trace:       opts.trace,
		},
	})
}

// configure installs cfg, reopening the logger, the store and the tracer.
func (a *app) configure(cfg *config.Config) error {
	cfg = applyFlags(a.opts, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lc, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	var logger *logging.Logger
	if lc.Output == "stderr" {
		logger = logging.NewWithWriter(a.stderr, lc)
	} else if logger, err = logging.New(lc); err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	var st *store.Store
	if cfg.Storage.Enabled {
		st, err = store.Open(cfg.Storage.Path)
		if err != nil {
			logger.Close()
			return fmt.Errorf("open store: %w", err)
		}
	}

	tp, err := tracing.Init(cfg.TracingConfig(), version, a.stderr, logger.Logger)
	if err != nil {
		if st != nil {
			st.Close()
		}
		logger.Close()
		return fmt.Errorf("init tracing: %w", err)
	}

	a.closeResources()
	a.cfg = cfg
	a.logger = logger
	a.store = st
	a.tracing = tp
	logging.SetDefault(logger)

	logger.Debug("configured",
		"log_level", logging.LevelString(lc.Level),
		"store", st != nil,
		"trace", cfg.Telemetry.Trace,
		"metrics_path", cfg.Telemetry.MetricsPath)
	return nil
}

func (a *app) closeResources() {
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("flush traces", "error", err)
		}
		cancel()
		a.tracing = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
		a.store = nil
	}
	if a.logger != nil {
		a.logger.Close()
	}
}

// Close releases the store, the log file and the config watcher.
func (a *app) Close() {
	a.closeResources()
	a.loader.Close()
}

// replay reconstructs one log, records it when storage is enabled and writes
// the report. A fatal reconstruction error is returned after the partial
// result has been reported.
func (a *app) replay(ctx context.Context, path string) (err error) {
	runID := store.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	logger := a.logger.WithRun(runID, path)
	started := time.Now()

	ctx, span := tracing.Start(ctx, "replay",
		attribute.String("textreplay.run_id", runID),
		attribute.String("textreplay.log_path", path),
	)
	defer func() { tracing.End(span, err) }()

	format, err := inputlog.ParseFormat(a.cfg.Input.Format)
	if err != nil {
		return err
	}
	events, err := inputlog.ReadFile(path, inputlog.Options{
		Format:         format,
		ValidateSchema: a.cfg.Input.ValidateSchema,
	})
	if err != nil {
		return err
	}
	seed, err := inputlog.ReadSeed(a.opts.seedPath)
	if err != nil {
		return err
	}

	ropts, err := a.cfg.ReplayOptions(logger.Logger)
	if err != nil {
		return err
	}

	logger.Debug("replay started", "events", events.Len(), "seed_length", len([]rune(seed)))
	steps, res, runErr := replay.New(ropts).Run(events, seed)
	a.observe(res, time.Since(started), runErr)
	span.SetAttributes(
		attribute.Int("textreplay.events", res.Events),
		attribute.Int("textreplay.in_focus", res.InFocus),
		attribute.Int("textreplay.changed", res.Changed),
		attribute.Int("textreplay.diagnostics", len(res.Diagnostics)),
	)
	if runErr != nil {
		logger.Error("replay failed", "error", runErr)
	} else {
		logger.Info("replay finished",
			"in_focus", res.InFocus,
			"changed", res.Changed,
			"diagnostics", len(res.Diagnostics),
			"duration", time.Since(started))
	}

	if a.store != nil {
		if err := a.record(ctx, path, seed, steps, res, started, runErr); err != nil {
			return errors.Join(runErr, err)
		}
	}

	rep := &report{RunID: runID, Log: path, Result: res}
	if a.opts.steps {
		rep.Steps = steps
	}
	if runErr != nil {
		rep.Failure = runErr.Error()
	}
	if err := a.writeReport(rep); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// observe updates the run metrics and rewrites the metrics file.
func (a *app) observe(res *replay.Result, d time.Duration, runErr error) {
	a.metrics.ObserveRun(res, d, runErr)
	if path := a.cfg.Telemetry.MetricsPath; path != "" {
		if err := a.metrics.Registry().WriteFile(path); err != nil {
			a.logger.Warn("write metrics", "path", path, "error", err)
		}
	}
}

// record saves the run identified by ctx and prunes older runs of the same
// log beyond storage.keep_runs.
func (a *app) record(ctx context.Context, path, seed string, steps []replay.Step, res *replay.Result, started time.Time, runErr error) (err error) {
	_, span := tracing.Start(ctx, "record_run")
	defer func() { tracing.End(span, err) }()

	runID := logging.RunIDFromContext(ctx)

	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		abs = path
	}
	r := store.NewRun(abs, seed, res, started, runErr)
	r.ID = runID

	var kept []store.Step
	if a.cfg.Replay.KeepSteps {
		kept = store.StepsFromReplay(runID, steps)
	}
	if err := a.store.SaveRun(r, kept, store.DiagnosticsFromReplay(runID, res.Diagnostics)); err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	pruned, err := a.store.PruneRuns(abs, a.cfg.Storage.KeepRuns)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	if pruned > 0 {
		a.logger.WithContext(ctx).Debug("pruned runs", "log_path", abs, "deleted", pruned)
	}
	return nil
}

func (a *app) writeReport(rep *report) error {
	w := a.stdout
	if a.opts.output != "" {
		f, err := os.Create(a.opts.output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if a.opts.format == "json" {
		return rep.writeJSON(w)
	}
	return rep.writeText(w)
}

// watch replays the log once, then again each time it settles after a
// change, until ctx is cancelled. Config file edits take effect on the next
// replay.
func (a *app) watch(ctx context.Context) error {
	path := a.opts.logPath
	if err := a.replay(ctx, path); err != nil {
		a.logger.Error("replay", "error", err)
	}

	reloads := make(chan *config.Config, 1)
	a.loader.OnChange(func(cfg *config.Config) {
		select {
		case <-reloads:
		default:
		}
		reloads <- cfg
	})
	if err := a.loader.Watch(); err != nil {
		a.logger.Warn("config hot reload disabled", "error", err)
	}

	w, err := watcher.New([]string{path}, time.Duration(a.cfg.Watch.DebounceMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Stop()

	a.logger.Info("watching", "paths", w.WatchedPaths(), "debounce_ms", a.cfg.Watch.DebounceMs)

	for {
		select {
		case <-ctx.Done():
			if n := w.PendingFiles(); n > 0 {
				a.logger.Info("stopped with unsettled changes", "pending", n)
			}
			return nil

		case cfg := <-reloads:
			if err := a.configure(cfg); err != nil {
				a.logger.Warn("config reload rejected", "error", err)
				continue
			}
			a.logger.Info("config reloaded")

		case err := <-a.loader.Errors():
			a.logger.Warn("config reload", "error", err)

		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			a.logger.Debug("log changed", "path", ev.Path, "size", ev.Size)
			if err := a.replay(ctx, path); err != nil {
				a.logger.Error("replay", "error", err)
			}

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			a.logger.Warn("watcher", "error", err)
		}
	}
}
