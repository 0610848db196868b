// Package event provides the typed event records replayed by textreplay.
//
// Raw log entries arrive as field-value records. Normalize turns each one into
// an Event; NormalizeAll builds the ordered Log the rest of the pipeline
// borrows from.
package event

import "iter"

// Type is the logger's event category.
type Type string

const (
	TypeKeyboard    Type = "keyboard"
	TypeMouse       Type = "mouse"
	TypeFocus       Type = "focus"
	TypeInsert      Type = "insert"
	TypeReplacement Type = "replacement"
)

// Event represents one logged action.
type Event struct {
	ID             int
	Type           Type
	Output         string
	Position       *int
	PositionFull   int
	DocLength      *int
	DocLengthFull  int
	CharProduction int
	RawStart       *int
	RawEnd         *int
}

// Log is the ordered event sequence. Events are stored by value and never
// moved, so pointers handed out by At and All stay valid for the log's life.
type Log struct {
	events []Event
}

// NewLog creates a log over the given events in arrival order.
func NewLog(events []Event) *Log {
	return &Log{events: events}
}

// Len returns the number of events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// At returns the event at index i, or nil when i is out of range.
func (l *Log) At(i int) *Event {
	if l == nil || i < 0 || i >= len(l.events) {
		return nil
	}
	return &l.events[i]
}

// All yields every event with its index.
func (l *Log) All() iter.Seq2[int, *Event] {
	return func(yield func(int, *Event) bool) {
		for i := 0; i < l.Len(); i++ {
			if !yield(i, &l.events[i]) {
				return
			}
		}
	}
}

// IsReplacement reports whether e is a replacement record.
func IsReplacement(e *Event) bool {
	return e != nil && e.Type == TypeReplacement
}

// IsInsert reports whether e is an insert record.
func IsInsert(e *Event) bool {
	return e != nil && e.Type == TypeInsert
}

// IsKeyboard reports whether e is a keystroke.
func IsKeyboard(e *Event) bool {
	return e != nil && e.Type == TypeKeyboard
}

// IsKey reports whether e is a keystroke with the given output token.
func IsKey(e *Event, output string) bool {
	return IsKeyboard(e) && e.Output == output
}

// IsLeftClick reports whether e is a left mouse click.
func IsLeftClick(e *Event) bool {
	return e != nil && e.Type == TypeMouse && e.Output == OutputLeftClick
}

// IsKeyboardCut reports whether e is a cut shortcut.
func IsKeyboardCut(e *Event) bool {
	return IsKey(e, "LCTRL x") || IsKey(e, "RCTRL x")
}

// IsKeyboardCopy reports whether e is a copy shortcut.
func IsKeyboardCopy(e *Event) bool {
	return IsKey(e, "LCTRL c") || IsKey(e, "RCTRL c")
}

// IsKeyboardPaste reports whether e is a paste shortcut.
func IsKeyboardPaste(e *Event) bool {
	return IsKey(e, "LCTRL v") || IsKey(e, "RCTRL v")
}
