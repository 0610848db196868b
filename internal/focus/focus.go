// Package focus tracks which application held input focus while the log was
// recorded and selects the events that belong to the target application.
package focus

import (
	"iter"
	"strings"

	"textreplay/internal/event"
)

// State is the application that currently holds input focus.
type State string

const (
	StateWord     State = "WORD"
	StateTaskbar  State = "TASKBAR"
	StateExplorer State = "EXPLORER"
	StateUnknown  State = "UNKNOWN"
)

// ParseState maps a configured application name onto a State.
func ParseState(s string) (State, bool) {
	switch State(strings.ToUpper(strings.TrimSpace(s))) {
	case StateWord:
		return StateWord, true
	case StateTaskbar:
		return StateTaskbar, true
	case StateExplorer:
		return StateExplorer, true
	case StateUnknown:
		return StateUnknown, true
	}
	return StateUnknown, false
}

// Rules maps focus event outputs to states.
type Rules struct {
	// WordTitle is matched as a substring of the focus output.
	WordTitle string

	// TaskbarOutput is matched exactly.
	TaskbarOutput string

	// BrowserTitle is matched as a substring of the focus output.
	BrowserTitle string
}

// DefaultRules returns the window titles seen in Inputlog sessions recorded
// against Microsoft Word.
func DefaultRules() Rules {
	return Rules{
		WordTitle:     "Wordlog - Microsoft Word",
		TaskbarOutput: event.OutputTaskbar,
		BrowserTitle:  "Windows Internet Explorer",
	}
}

// Classify returns the state a focus output switches to.
func (r Rules) Classify(output string) State {
	switch {
	case r.WordTitle != "" && strings.Contains(output, r.WordTitle):
		return StateWord
	case output == r.TaskbarOutput:
		return StateTaskbar
	case r.BrowserTitle != "" && strings.Contains(output, r.BrowserTitle):
		return StateExplorer
	default:
		return StateUnknown
	}
}

// Tracker follows focus changes through an event sequence.
type Tracker struct {
	rules Rules
	state State
}

// NewTracker creates a tracker in the unknown state.
func NewTracker(rules Rules) *Tracker {
	return &Tracker{rules: rules, state: StateUnknown}
}

// Observe updates the state if e is a focus event and returns the current state.
func (t *Tracker) Observe(e *event.Event) State {
	if e != nil && e.Type == event.TypeFocus {
		t.state = t.rules.Classify(e.Output)
	}
	return t.state
}

// State returns the current focus state.
func (t *Tracker) State() State {
	return t.state
}

// Reset returns the tracker to the unknown state.
func (t *Tracker) Reset() {
	t.state = StateUnknown
}

// Filter yields (original index, event) for every event recorded while target
// held focus. Each iteration starts a fresh pass with the tracker reset.
func Filter(log *event.Log, t *Tracker, target State) iter.Seq2[int, *event.Event] {
	return func(yield func(int, *event.Event) bool) {
		t.Reset()
		for i, e := range log.All() {
			if t.Observe(e) != target {
				continue
			}
			if !yield(i, e) {
				return
			}
		}
	}
}
