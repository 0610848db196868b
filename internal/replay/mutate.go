package replay

import (
	"fmt"
	"strings"

	"textreplay/internal/event"
)

// Edit describes how one event changed the buffer.
type Edit struct {
	Offset   int    `json:"offset"`
	Inserted string `json:"inserted,omitempty"`
	Removed  string `json:"removed,omitempty"`
}

// IsZero reports whether the edit changed nothing.
func (e Edit) IsZero() bool {
	return e.Inserted == "" && e.Removed == ""
}

// Apply grows or shrinks text according to the window.
// It fails with NoChangeError when the window does neither; call it only
// after TextChanges reported true.
func Apply(w Window, text []rune) ([]rune, Edit, error) {
	switch {
	case w.TextIncreases():
		next, edit := Insert(w, text)
		return next, edit, nil
	case w.TextDecreases():
		return Remove(w, text)
	default:
		return text, Edit{}, &NoChangeError{EventID: w.Curr.ID}
	}
}

// Insert inserts curr's text at its cursor position.
//
// Only keystrokes and paste selections carry text. Growth on any other event
// is taken as a delayed length echo: the buffer is returned unchanged and
// curr's length is reset to prev's.
func Insert(w Window, text []rune) ([]rune, Edit) {
	curr := w.Curr
	paste := w.IsPasteSelection()

	if !w.IsKeyboardEvent() && !paste {
		w.ledger.correct(curr, w.length(w.Prev))
		w.ledger.record(Diagnostic{
			EventID:  curr.ID,
			Severity: SeverityInfo,
			Kind:     KindDelayedUpdate,
			Message:  "assume propagating correction for delayed update",
		})
		return text, Edit{}
	}

	s := curr.Output
	if event.IsSpecialOutput(s) {
		s = ""
	}
	s = rewriteToken(s)
	if paste {
		s = pasteText(w.Next)
		w.ledger.record(Diagnostic{
			EventID:  curr.ID,
			Severity: SeverityInfo,
			Kind:     KindPasteSelection,
			Message:  fmt.Sprintf("pasting selected text %q", s),
		})
	}

	pos := clamp(curr.PositionFull, 0, len(text))
	next := splice(text, pos, pos, []rune(s))
	edit := Edit{Offset: pos, Inserted: s}

	if expected := w.length(curr); len(next) != expected {
		if needsNewlineCompensation(curr) {
			w.ledger.record(Diagnostic{
				EventID:  curr.ID,
				Severity: SeverityWarning,
				Kind:     KindNewlineCompensation,
				Message:  "text length discrepancy on DOWN, inserting newline",
				Expected: expected,
				Actual:   len(next),
			})
			next = splice(next, pos, pos, []rune{'\n'})
			edit.Inserted += "\n"
		} else {
			w.discrepancy(next, pos)
		}
	}
	return next, edit
}

// Remove excises the span curr removes.
//
// A delete takes its span from the following replacement record, a cut
// selection from the preceding one, and a backspace removes the character
// before the cursor. Anything else is an UnknownDeleteSequenceError.
func Remove(w Window, text []rune) ([]rune, Edit, error) {
	curr := w.Curr
	var start, end int

	switch {
	case w.IsDelete() && event.IsReplacement(w.Next):
		span, ok := event.ParseReplacement(w.Next)
		if !ok {
			return text, Edit{}, w.unknownDelete(fmt.Sprintf("unparsable replacement %q", w.Next.Output))
		}
		start, end = span.Start, span.End
	case w.IsCutSelection():
		span, ok := event.ParseReplacement(w.Prev)
		if !ok {
			return text, Edit{}, w.unknownDelete(fmt.Sprintf("unparsable replacement %q", w.Prev.Output))
		}
		start, end = span.Start, span.End
		w.ledger.record(Diagnostic{
			EventID:  curr.ID,
			Severity: SeverityInfo,
			Kind:     KindCutSelection,
			Message:  fmt.Sprintf("cutting selected text %q", span.Text),
		})
	case w.IsBackspace():
		end = curr.PositionFull
		start = end - 1
	default:
		return text, Edit{}, w.unknownDelete("")
	}

	start = clamp(start, 0, len(text))
	end = clamp(end, start, len(text))
	edit := Edit{Offset: start, Removed: string(text[start:end])}
	next := splice(text, start, end, nil)

	if len(next) != w.length(curr) {
		w.discrepancy(next, start)
	}
	return next, edit, nil
}

func (w Window) discrepancy(next []rune, pos int) {
	curr := w.Curr
	output := curr.Output
	if strings.TrimSpace(output) == "" {
		output = fmt.Sprintf("%q", output)
	}
	w.ledger.record(Diagnostic{
		EventID:  curr.ID,
		Severity: SeverityWarning,
		Kind:     KindDiscrepancy,
		Message:  fmt.Sprintf("text length discrepancy after %s %s", curr.Type, output),
		Expected: w.length(curr),
		Actual:   len(next),
		Context:  w.ledger.cursorContext(next, pos),
	})
}

func (w Window) unknownDelete(reason string) error {
	return &UnknownDeleteSequenceError{
		EventID: w.Curr.ID,
		Type:    w.Curr.Type,
		Output:  w.Curr.Output,
		Reason:  reason,
	}
}

// pasteText strips one pair of enclosing brackets from an insert payload.
func pasteText(e *event.Event) string {
	s := e.Output
	if len(s) >= 2 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s[1 : len(s)-1]
	}
	return s
}

// splice returns a new buffer with text[start:end] replaced by ins.
func splice(text []rune, start, end int, ins []rune) []rune {
	out := make([]rune, 0, len(text)-(end-start)+len(ins))
	out = append(out, text[:start]...)
	out = append(out, ins...)
	return append(out, text[end:]...)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
