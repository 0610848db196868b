// Package replay reconstructs document text from a focus-filtered event log.
//
// The fold walks one Window per in-focus event. Each window sees its
// neighbours in the unfiltered log, so an out-of-focus event between two
// in-focus events is still visible as prev or next. The classifier decides
// whether the current event changes the text, correcting stale lengths in the
// run's Ledger, and the mutator applies the change to the buffer.
package replay

import (
	"iter"

	"textreplay/internal/event"
)

// Window is the (prev, curr, next) context of one in-focus event.
// Prev and Next are nil at the boundaries of the log.
type Window struct {
	// Index is Curr's position in the unfiltered log.
	Index int

	Prev *event.Event
	Curr *event.Event
	Next *event.Event

	ledger *Ledger
}

// NewWindow builds a window over explicit events. A nil ledger gets a fresh,
// silent one.
func NewWindow(prev, curr, next *event.Event, ledger *Ledger) Window {
	if ledger == nil {
		ledger = NewLedger(nil, DefaultContextSize)
	}
	return Window{Prev: prev, Curr: curr, Next: next, ledger: ledger}
}

// Ledger returns the ledger the window reads lengths from.
func (w Window) Ledger() *Ledger {
	return w.ledger
}

// Windows yields a window for every (index, event) pair from filtered, with
// neighbours taken from log. All windows share ledger.
func Windows(log *event.Log, filtered iter.Seq2[int, *event.Event], ledger *Ledger) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		for i, e := range filtered {
			w := Window{
				Index:  i,
				Prev:   log.At(i - 1),
				Curr:   e,
				Next:   log.At(i + 1),
				ledger: ledger,
			}
			if !yield(w) {
				return
			}
		}
	}
}

func (w Window) length(e *event.Event) int {
	return w.ledger.DocLength(e)
}
