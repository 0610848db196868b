package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"textreplay/internal/config"
	"textreplay/internal/health"
	"textreplay/internal/inputlog"
	"textreplay/internal/store"
)

// runChecks verifies the configuration, the directories textreplay writes
// to, the run store and, if given, the event log. It exits 1 only when a
// critical check fails.
func runChecks(ctx context.Context, opts *options, stdout io.Writer) int {
	checker := health.NewChecker()

	path := configPath(opts)
	cfg, err := config.NewLoader(path).Load()
	if err == nil {
		cfg = applyFlags(opts, cfg)
		err = cfg.Validate()
	}
	cfgErr := err
	checker.RegisterFunc("config", true, health.CustomCheck("configuration valid: "+path, func(context.Context) error {
		return cfgErr
	}))

	// The store is opened once here; concurrent checks share it.
	var (
		st      *store.Store
		openErr error
	)
	if cfgErr == nil {
		registerConfigChecks(checker, cfg)
		if cfg.Storage.Enabled {
			st, openErr = store.Open(cfg.Storage.Path)
			if st != nil {
				defer st.Close()
			}
			checker.RegisterFunc("store", true, storeCheck(st, cfg.Storage.Path, openErr))
		}
	}
	if opts.logPath != "" {
		checker.RegisterFunc("event_log", true, eventLogCheck(opts.logPath, cfg))
		if st != nil {
			checker.RegisterFunc("log_runs", false, logRunsCheck(st, opts.logPath))
		}
	}

	report := checker.Run(ctx)

	if opts.format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return 1
		}
	} else {
		writeCheckReport(stdout, report)
	}

	if report.Status == health.StatusUnhealthy {
		return 1
	}
	return 0
}

func registerConfigChecks(checker *health.Checker, cfg *config.Config) {
	checker.RegisterFunc("data_dir", false, health.DirWritableCheck(config.DataDir()))

	switch strings.ToLower(cfg.Logging.Output) {
	case "file", "both":
		checker.RegisterFunc("log_dir", true, health.DirWritableCheck(filepath.Dir(cfg.Logging.FilePath)))
	}
	if p := cfg.Telemetry.MetricsPath; p != "" {
		checker.RegisterFunc("metrics_dir", false, health.DirWritableCheck(filepath.Dir(p)))
	}
	if cfg.Telemetry.Trace && cfg.Telemetry.TracePath != "" {
		checker.RegisterFunc("trace_dir", false, health.DirWritableCheck(filepath.Dir(cfg.Telemetry.TracePath)))
	}
}

// storeCheck validates the run store's schema and re-verifies the hashes of
// every recorded run. Tampered runs degrade the store.
func storeCheck(s *store.Store, path string, openErr error) health.Check {
	return func(ctx context.Context) health.CheckResult {
		fail := func(msg string, err error) health.CheckResult {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: msg, Error: err.Error()}
		}

		if openErr != nil {
			return fail("store cannot be opened", openErr)
		}
		if err := s.DB().PingContext(ctx); err != nil {
			return fail("store not reachable", err)
		}
		if err := store.ValidateSchema(s.DB()); err != nil {
			return fail("store schema invalid", err)
		}
		status, err := store.GetMigrationStatus(s.DB())
		if err != nil {
			return fail("migration status unavailable", err)
		}

		runs, err := s.ListRuns(0)
		if err != nil {
			return fail("runs cannot be listed", err)
		}
		bad, err := s.VerifyAllRuns()
		if err != nil {
			return fail("runs cannot be verified", err)
		}

		result := health.CheckResult{
			Status:  health.StatusHealthy,
			Message: "store ok",
			Details: map[string]any{
				"path":           path,
				"schema_version": status.CurrentVersion,
				"runs":           len(runs),
			},
		}
		if len(bad) > 0 {
			result.Status = health.StatusDegraded
			result.Message = fmt.Sprintf("%d runs failed integrity verification", len(bad))
			result.Details["tampered"] = bad
		}
		return result
	}
}

// logRunsCheck summarizes the recorded runs of one event log. A failed
// latest run degrades the check.
func logRunsCheck(s *store.Store, logPath string) health.Check {
	return func(ctx context.Context) health.CheckResult {
		abs, err := filepath.Abs(logPath)
		if err != nil {
			abs = logPath
		}

		runs, err := s.ListRunsForLog(abs)
		if err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: "runs cannot be listed", Error: err.Error()}
		}
		if len(runs) == 0 {
			return health.CheckResult{
				Status:  health.StatusHealthy,
				Message: "no recorded runs",
				Details: map[string]any{"runs": 0},
			}
		}

		latest := runs[len(runs)-1]
		diags, err := s.GetDiagnostics(latest.ID)
		if err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: "diagnostics cannot be read", Error: err.Error()}
		}
		warnings := 0
		for _, d := range diags {
			if d.Severity != "info" {
				warnings++
			}
		}

		result := health.CheckResult{
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("latest run %s, %d diagnostics (%d warnings)", latest.ID, len(diags), warnings),
			Details: map[string]any{
				"runs":        len(runs),
				"latest_run":  latest.ID,
				"diagnostics": len(diags),
				"warnings":    warnings,
			},
		}
		if latest.Failure != "" {
			result.Status = health.StatusDegraded
			result.Message = "latest run failed: " + latest.Failure
		}
		return result
	}
}

// eventLogCheck reads and decodes the event log without replaying it.
func eventLogCheck(path string, cfg *config.Config) health.Check {
	return func(ctx context.Context) health.CheckResult {
		if r := health.FileReadableCheck(path)(ctx); r.Status != health.StatusHealthy {
			return r
		}

		opts := inputlog.DefaultOptions()
		if cfg != nil {
			format, err := inputlog.ParseFormat(cfg.Input.Format)
			if err != nil {
				return health.CheckResult{Status: health.StatusUnhealthy, Message: "bad input format", Error: err.Error()}
			}
			opts = inputlog.Options{Format: format, ValidateSchema: cfg.Input.ValidateSchema}
		}

		log, err := inputlog.ReadFile(path, opts)
		if err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: "event log cannot be decoded", Error: err.Error()}
		}
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Message: "event log ok",
			Details: map[string]any{"path": path, "events": log.Len()},
		}
	}
}

func writeCheckReport(w io.Writer, report health.Report) {
	p := message.NewPrinter(language.English)
	for _, r := range report.Results {
		p.Fprintf(w, "%-12s %-9s %s", r.Name, r.Status, r.Message)
		if r.Error != "" {
			p.Fprintf(w, ": %s", r.Error)
		}
		if n, ok := r.Details["events"].(int); ok {
			p.Fprintf(w, " (%d events)", n)
		}
		if n, ok := r.Details["runs"].(int); ok {
			p.Fprintf(w, " (%d runs)", n)
		}
		p.Fprintf(w, "\n")
	}
	p.Fprintf(w, "Status: %s\n", report.Status)
}
