package replay

import (
	"textreplay/internal/event"
)

// Predicates that need an absent neighbour report false.

// CursorMoves reports whether the cursor moved between prev and curr.
func (w Window) CursorMoves() bool {
	return w.Prev != nil && w.Prev.PositionFull != w.Curr.PositionFull
}

// TextIncreases reports whether the document grew between prev and curr.
func (w Window) TextIncreases() bool {
	return w.Prev != nil && w.length(w.Prev) < w.length(w.Curr)
}

// TextDecreases reports whether the document shrank between prev and curr.
func (w Window) TextDecreases() bool {
	return w.Prev != nil && w.length(w.Prev) > w.length(w.Curr)
}

// IsKeyboardEvent reports whether curr is a keystroke.
func (w Window) IsKeyboardEvent() bool {
	return event.IsKeyboard(w.Curr)
}

// IsSpecialKeyboardOutput reports whether curr is a keystroke that never adds
// or removes text by itself.
func (w Window) IsSpecialKeyboardOutput() bool {
	return isSpecialKey(w.Curr)
}

// IsKeyboardTextOutput reports whether curr is a character-producing keystroke.
func (w Window) IsKeyboardTextOutput() bool {
	return w.IsKeyboardEvent() && !w.IsSpecialKeyboardOutput()
}

// IsFirstOutput reports whether curr is where text first appears in the session.
func (w Window) IsFirstOutput() bool {
	return w.Prev != nil && w.length(w.Prev) == 0 && w.length(w.Curr) > 0
}

// IsTextLoadEvent reports whether curr is the seed text appearing in the
// editor rather than a user edit.
func (w Window) IsTextLoadEvent() bool {
	return w.TextIncreases() && w.IsFirstOutput() && !w.IsKeyboardTextOutput()
}

// IsCutSelection reports whether curr is a click or cut shortcut bracketed by
// the two replacement records the logger writes around a cut.
func (w Window) IsCutSelection() bool {
	if !event.IsLeftClick(w.Curr) && !event.IsKeyboardCut(w.Curr) {
		return false
	}
	return event.IsReplacement(w.Prev) && event.IsReplacement(w.Next)
}

// IsPasteSelection reports whether curr is a click or paste shortcut followed
// by the insert record carrying the pasted text.
func (w Window) IsPasteSelection() bool {
	if !event.IsLeftClick(w.Curr) && !event.IsKeyboardPaste(w.Curr) {
		return false
	}
	return event.IsInsert(w.Next)
}

// IsDelete reports whether curr is a DELETE keystroke that can be applied.
// A DELETE without a following replacement record is recorded as a
// diagnostic and reported as not a delete.
func (w Window) IsDelete() bool {
	if !event.IsKey(w.Curr, event.OutputDelete) {
		return false
	}
	if !event.IsReplacement(w.Next) {
		w.ledger.record(Diagnostic{
			EventID:  w.Curr.ID,
			Severity: SeverityWarning,
			Kind:     KindMissingReplacement,
			Message:  "delete misses replacement",
		})
		return false
	}
	return true
}

// IsBackspace reports whether curr is a BACK keystroke.
func (w Window) IsBackspace() bool {
	return event.IsKey(w.Curr, event.OutputBackspace)
}

// IsKeyboardTextRemove reports whether curr is a delete or backspace.
func (w Window) IsKeyboardTextRemove() bool {
	return w.IsDelete() || w.IsBackspace()
}

// NextEventIncreasesText reports whether next is longer than curr.
func (w Window) NextEventIncreasesText() bool {
	return w.Next != nil && w.length(w.Next) > w.length(w.Curr)
}

// NextEventDecreasesText reports whether next is shorter than curr.
func (w Window) NextEventDecreasesText() bool {
	return w.Next != nil && w.length(w.Next) < w.length(w.Curr)
}

// NextEventReplacesText reports whether next is a replacement record.
func (w Window) NextEventReplacesText() bool {
	return event.IsReplacement(w.Next)
}

// TextChanges reports whether curr should be applied to the buffer.
//
// When the logged lengths show no change but the following event carries the
// evidence, the change is attributed to curr and curr's length is corrected in
// the ledger:
//   - a text keystroke followed by growth adopts the next length;
//   - a text keystroke followed by a DELETE of equal length grows by one;
//   - a backspace followed by shrinkage shrinks by one;
//   - a delete followed by a replacement shrinks by the replaced span;
//   - any other removal followed by shrinkage adopts the next length.
func (w Window) TextChanges() bool {
	if w.TextIncreases() || w.TextDecreases() {
		return true
	}

	curr := w.length(w.Curr)

	if w.IsKeyboardTextOutput() {
		switch {
		case w.NextEventIncreasesText():
			// Usually the next event is a special key (an arrow or shift)
			// that finally carries the length update; any growth counts.
			w.ledger.correct(w.Curr, w.length(w.Next))
			return true
		case event.IsKey(w.Next, event.OutputDelete) && curr == w.length(w.Next):
			w.ledger.correct(w.Curr, curr+1)
			return true
		}
	}

	if w.IsKeyboardTextRemove() {
		if w.IsBackspace() && w.NextEventDecreasesText() {
			w.ledger.correct(w.Curr, curr-1)
			return true
		}
		if w.IsDelete() && w.NextEventReplacesText() {
			if span, ok := event.ParseReplacement(w.Next); ok && span.Len() > 0 {
				w.ledger.correct(w.Curr, curr-span.Len())
				return true
			}
		}
		if w.NextEventDecreasesText() {
			w.ledger.correct(w.Curr, w.length(w.Next))
			return true
		}
	}

	return false
}

func isSpecialKey(e *event.Event) bool {
	return event.IsKeyboard(e) && event.IsSpecialOutput(e.Output)
}
