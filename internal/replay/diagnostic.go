package replay

import "log/slog"

// Severity indicates how much a diagnostic matters to a reviewer.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Level maps the severity onto a slog level.
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Kind categorizes a diagnostic.
//
// A discrepancy is a buffer whose length differs from the logged length. A
// missing replacement is a DELETE with no replacement record after it. A
// delayed update is growth with no text to insert, taken as a late length
// echo. Newline compensation is a newline inserted for a DOWN arrow length
// bump.
type Kind string

const (
	KindDiscrepancy         Kind = "discrepancy"
	KindMissingReplacement  Kind = "missing_replacement"
	KindDelayedUpdate       Kind = "delayed_update"
	KindPasteSelection      Kind = "paste_selection"
	KindCutSelection        Kind = "cut_selection"
	KindNewlineCompensation Kind = "newline_compensation"
	KindTextLoad            Kind = "text_load"
)

// Diagnostic is one note about the replay of a single event.
type Diagnostic struct {
	EventID  int      `json:"event_id"`
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`

	// Expected and Actual are document lengths; both are zero unless Kind
	// is KindDiscrepancy or KindNewlineCompensation.
	Expected int `json:"expected,omitempty"`
	Actual   int `json:"actual,omitempty"`

	// Context is the text around the cursor after the event was applied.
	Context string `json:"context,omitempty"`
}
