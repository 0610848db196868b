// Package store provides SQLite-based storage of reconstruction runs.
package store

import (
	"crypto/sha256"
	"time"

	"github.com/google/uuid"

	"textreplay/internal/replay"
)

// Run is one reconstruction of one event log.
type Run struct {
	ID            string
	LogPath       string
	SeedHash      [32]byte
	FinalText     string
	FinalTextHash [32]byte

	// StepsHash covers the stored steps; it is zero when none were kept.
	StepsHash [32]byte

	Events      int
	InFocus     int
	Changed     int
	Diagnostics int

	// Failure is the fatal error that stopped the run, or "" when it finished.
	Failure string

	StartedAt  int64
	FinishedAt int64
}

// Step is one buffer change of a run.
type Step struct {
	RunID      string
	Ordinal    int
	EventIndex int
	EventID    int
	Offset     int
	Inserted   string
	Removed    string
}

// Diagnostic is one replay diagnostic of a run.
type Diagnostic struct {
	RunID    string
	Ordinal  int
	EventID  int
	Severity string
	Kind     string
	Message  string
	Expected int
	Actual   int
	Context  string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRun builds a run record from a finished or failed replay. runErr is the
// fatal error, if any.
func NewRun(logPath, seed string, res *replay.Result, started time.Time, runErr error) *Run {
	r := &Run{
		ID:            NewRunID(),
		LogPath:       logPath,
		SeedHash:      sha256.Sum256([]byte(seed)),
		FinalText:     res.Text,
		FinalTextHash: sha256.Sum256([]byte(res.Text)),
		Events:        res.Events,
		InFocus:       res.InFocus,
		Changed:       res.Changed,
		Diagnostics:   len(res.Diagnostics),
		StartedAt:     started.UnixNano(),
		FinishedAt:    time.Now().UnixNano(),
	}
	if runErr != nil {
		r.Failure = runErr.Error()
	}
	return r
}

// StepsFromReplay keeps the steps that changed the buffer, numbered in order.
func StepsFromReplay(runID string, steps []replay.Step) []Step {
	var out []Step
	for _, s := range steps {
		if !s.Changed {
			continue
		}
		out = append(out, Step{
			RunID:      runID,
			Ordinal:    len(out),
			EventIndex: s.Index,
			EventID:    s.EventID,
			Offset:     s.Edit.Offset,
			Inserted:   s.Edit.Inserted,
			Removed:    s.Edit.Removed,
		})
	}
	return out
}

// DiagnosticsFromReplay converts replay diagnostics, numbered in order.
func DiagnosticsFromReplay(runID string, diags []replay.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for i, d := range diags {
		out = append(out, Diagnostic{
			RunID:    runID,
			Ordinal:  i,
			EventID:  d.EventID,
			Severity: string(d.Severity),
			Kind:     string(d.Kind),
			Message:  d.Message,
			Expected: d.Expected,
			Actual:   d.Actual,
			Context:  d.Context,
		})
	}
	return out
}
