// Package inputlog reads Inputlog session exports into event records.
//
// Two encodings are supported. XML sessions are a root element holding
// <event> elements whose attributes and child elements are the event's
// fields. JSON sessions are either an array of event objects or the same
// {"session":{"event":[...]}} shape an XML-to-JSON conversion produces.
package inputlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"textreplay/internal/event"
)

// Format identifies an event log encoding.
type Format string

const (
	FormatAuto Format = "auto"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

var (
	// ErrUnknownFormat is returned when a log's encoding cannot be determined.
	ErrUnknownFormat = errors.New("unknown event log format")

	// ErrSchema is matched by errors from JSON logs that fail schema validation.
	ErrSchema = errors.New("event log does not match schema")
)

// ParseFormat maps a configured format name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatXML, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Options controls how a log file is read.
type Options struct {
	// Format forces an encoding. FormatAuto picks one by file extension.
	Format Format

	// ValidateSchema checks JSON logs against the event log schema.
	ValidateSchema bool
}

// DefaultOptions returns auto-detection with schema validation.
func DefaultOptions() Options {
	return Options{Format: FormatAuto, ValidateSchema: true}
}

// DetectFormat picks an encoding from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".idfx":
		return FormatXML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Read decodes records in the given encoding. FormatAuto is not accepted here.
func Read(r io.Reader, format Format, validate bool) ([]event.Record, error) {
	switch format {
	case FormatXML:
		return ReadXML(r)
	case FormatJSON:
		return ReadJSON(r, validate)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Load decodes and normalizes a log.
func Load(r io.Reader, format Format, validate bool) (*event.Log, error) {
	recs, err := Read(r, format, validate)
	if err != nil {
		return nil, err
	}
	log, err := event.NormalizeAll(recs)
	if err != nil {
		return nil, fmt.Errorf("normalize events: %w", err)
	}
	return log, nil
}

// ReadFile reads and normalizes the log at path.
func ReadFile(path string, opts Options) (*event.Log, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	log, err := Load(f, format, opts.ValidateSchema)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return log, nil
}

// ReadSeed returns the text the document held when logging began. An empty
// path is an empty document. A leading byte order mark is dropped.
func ReadSeed(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read seed text: %w", err)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
