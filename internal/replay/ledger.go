package replay

import (
	"context"
	"log/slog"
	"maps"

	"textreplay/internal/event"
)

// Ledger is the per-run accumulator threaded through the fold alongside the
// text buffer. It holds the corrected document lengths and the diagnostics.
//
// The logger often reports doclengthFull one event late. When the classifier
// moves a length back onto the event that caused the change, the corrected
// value is stored here by event id, and every later read of that event goes
// through DocLength. Events are never modified, so a log can be replayed again
// with a fresh ledger.
type Ledger struct {
	lengths     map[int]int
	diags       []Diagnostic
	seen        map[diagKey]struct{}
	contextSize int
	logger      *slog.Logger
}

type diagKey struct {
	id   int
	kind Kind
}

// NewLedger creates an empty ledger. A nil logger discards diagnostics
// logging; they are still collected.
func NewLedger(logger *slog.Logger, contextSize int) *Ledger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if contextSize < 0 {
		contextSize = 0
	}
	return &Ledger{
		lengths:     make(map[int]int),
		seen:        make(map[diagKey]struct{}),
		contextSize: contextSize,
		logger:      logger,
	}
}

// DocLength returns e's document length, corrected if the fold has corrected it.
// A nil event has length zero.
func (l *Ledger) DocLength(e *event.Event) int {
	if e == nil {
		return 0
	}
	if n, ok := l.lengths[e.ID]; ok {
		return n
	}
	return e.DocLengthFull
}

// Corrected reports whether e's length has been corrected.
func (l *Ledger) Corrected(e *event.Event) bool {
	if e == nil {
		return false
	}
	_, ok := l.lengths[e.ID]
	return ok
}

func (l *Ledger) correct(e *event.Event, n int) {
	l.logger.Debug("corrected document length",
		"event_id", e.ID,
		"logged", e.DocLengthFull,
		"corrected", n,
	)
	l.lengths[e.ID] = n
}

// Corrections returns a copy of the corrected lengths by event id.
func (l *Ledger) Corrections() map[int]int {
	return maps.Clone(l.lengths)
}

// Diagnostics returns the diagnostics recorded so far, in order.
func (l *Ledger) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(l.diags))
	copy(out, l.diags)
	return out
}

// HasDiagnostic reports whether a diagnostic of the given kind was recorded for id.
func (l *Ledger) HasDiagnostic(id int, kind Kind) bool {
	_, ok := l.seen[diagKey{id: id, kind: kind}]
	return ok
}

// record stores d unless the same kind was already recorded for the event.
func (l *Ledger) record(d Diagnostic) {
	key := diagKey{id: d.EventID, kind: d.Kind}
	if _, dup := l.seen[key]; dup {
		return
	}
	l.seen[key] = struct{}{}
	l.diags = append(l.diags, d)

	args := []any{"event_id", d.EventID, "kind", string(d.Kind)}
	if d.Kind == KindDiscrepancy || d.Kind == KindNewlineCompensation {
		args = append(args, "expected", d.Expected, "actual", d.Actual)
	}
	if d.Context != "" {
		args = append(args, "context", d.Context)
	}
	l.logger.Log(context.Background(), d.Severity.Level(), d.Message, args...)
}

// cursorContext returns the text within contextSize characters of pos.
func (l *Ledger) cursorContext(text []rune, pos int) string {
	lo := clamp(pos-l.contextSize, 0, len(text))
	hi := clamp(pos+l.contextSize+1, lo, len(text))
	return string(text[lo:hi])
}
