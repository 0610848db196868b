// Package tracing sets up OpenTelemetry tracing for textreplay.
//
// Spans are exported as JSON lines, to a file or to a writer, with the
// stdout trace exporter. When tracing is disabled the global no-op provider
// stays in place and spans cost nothing.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "textreplay"

// Config controls span export.
type Config struct {
	// Enabled turns on span export.
	Enabled bool

	// Path is the file spans are appended to. Empty means the writer given
	// to Init.
	Path string

	// SampleRatio is the fraction of traces kept. Zero means all.
	SampleRatio float64
}

// Provider owns the tracer provider and its output file.
type Provider struct {
	tp   *sdktrace.TracerProvider
	file *os.File
}

// Init installs a global tracer provider for cfg. w receives spans when
// cfg.Path is empty.
func Init(cfg Config, serviceVersion string, w io.Writer, logger *slog.Logger) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	p := &Provider{}
	out := w
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
			return nil, fmt.Errorf("create trace directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		p.file = f
		out = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		p.closeFile()
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(instrumentationName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		p.closeFile()
		return nil, fmt.Errorf("create resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(p.tp)

	if logger != nil {
		logger.Debug("tracing initialized", "path", cfg.Path, "sample_ratio", ratio)
	}
	return p, nil
}

func (p *Provider) closeFile() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

// Shutdown flushes pending spans and closes the output file.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	if p.tp != nil {
		err = p.tp.Shutdown(ctx)
		p.tp = nil
	}
	return errors.Join(err, p.closeFile())
}

// Start begins a span on the global provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End finishes span, marking it failed when err is non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
