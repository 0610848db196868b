// Command textreplay reconstructs document text from keystroke logger event
// logs.
//
// The log is replayed from an optional seed text. Only events recorded while
// the target application had focus change the document. Length discrepancies
// and other anomalies are reported as diagnostics; an unrecognised delete
// sequence stops the replay.
//
// Usage:
//
//	textreplay [flags] <log.xml|log.json>
//
// Examples:
//
//	# Reconstruct a session
//	textreplay session.xml
//
//	# Start from existing text and emit JSON with every step
//	textreplay -seed draft.txt -format json -steps session.json
//
//	# Record runs and replay again whenever the log changes
//	textreplay -store runs.db -watch session.xml
//
//	# Check the setup and the integrity of recorded runs
//	textreplay -check -store runs.db
//
//	# Write a default config file
//	textreplay -init
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"textreplay/internal/config"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// errUsage marks a command line error.
var errUsage = errors.New("usage")

type options struct {
	configPath string
	seedPath   string
	format     string
	output     string
	storePath  string
	logLevel   string
	metrics    string
	steps      bool
	trace      bool
	watch      bool
	check      bool
	initConfig bool
	version    bool
	logPath    string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("textreplay", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "config file (default: search ./config.* then the user config dir)")
	fs.StringVar(&opts.seedPath, "seed", "", "file holding the document text before the session")
	fs.StringVar(&opts.format, "format", "text", "output format: text, json")
	fs.StringVar(&opts.output, "output", "", "output file (default: stdout)")
	fs.StringVar(&opts.storePath, "store", "", "record runs in this SQLite database")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.metrics, "metrics", "", "write Prometheus metrics to this file after every run")
	fs.BoolVar(&opts.trace, "trace", false, "export an OpenTelemetry span per run (default: to stderr)")
	fs.BoolVar(&opts.steps, "steps", false, "include every in-focus step in the output")
	fs.BoolVar(&opts.watch, "watch", false, "replay again whenever the log file changes")
	fs.BoolVar(&opts.check, "check", false, "check the configuration, store and log file, then exit")
	fs.BoolVar(&opts.initConfig, "init", false, "write a default config file if none exists, then exit")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "textreplay - Reconstruct document text from keystroke logs\n\n")
		fmt.Fprintf(stderr, "Usage: textreplay [flags] <log.xml|log.json>\n")
		fmt.Fprintf(stderr, "       textreplay -check [flags] [log.xml|log.json]\n")
		fmt.Fprintf(stderr, "       textreplay -init [-config path]\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nOutput Formats:\n")
		fmt.Fprintf(stderr, "  text      - Summary, diagnostics and final text (default)\n")
		fmt.Fprintf(stderr, "  json      - JSON document for programmatic processing\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  textreplay session.xml\n")
		fmt.Fprintf(stderr, "  textreplay -seed draft.txt -format json -steps session.json\n")
		fmt.Fprintf(stderr, "  textreplay -store runs.db -watch session.xml\n")
		fmt.Fprintf(stderr, "  textreplay -check -store runs.db\n")
		fmt.Fprintf(stderr, "  textreplay -init\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if opts.version {
		return opts, nil
	}

	switch opts.format {
	case "text", "json":
	default:
		fs.Usage()
		return nil, fmt.Errorf("%w: unknown output format %q", errUsage, opts.format)
	}

	if opts.initConfig {
		if fs.NArg() != 0 {
			fs.Usage()
			return nil, fmt.Errorf("%w: -init takes no arguments", errUsage)
		}
		return opts, nil
	}
	if opts.check && fs.NArg() <= 1 {
		opts.logPath = fs.Arg(0)
		return opts, nil
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: event log file required\n\n")
		fs.Usage()
		return nil, fmt.Errorf("%w: event log file required", errUsage)
	}
	opts.logPath = fs.Arg(0)
	return opts, nil
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "textreplay %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return 0
	}

	if opts.initConfig {
		return runInit(opts, stdout, stderr)
	}
	if opts.check {
		return runChecks(ctx, opts, stdout)
	}

	a, err := newApp(opts, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if opts.watch {
		err = a.watch(ctx)
	} else {
		err = a.replay(ctx, opts.logPath)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runInit writes the default configuration unless a config file already
// exists at the resolved path.
func runInit(opts *options, stdout, stderr io.Writer) int {
	path := opts.configPath
	if path == "" {
		path = config.ConfigPath()
	}

	_, created, err := config.LoadOrCreate(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if created {
		fmt.Fprintf(stdout, "Created %s\n", path)
	} else {
		fmt.Fprintf(stdout, "Config exists at %s\n", path)
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
