package replay

import (
	"textreplay/internal/event"
)

// ev builds an event with the fields the replay reads.
func ev(id int, typ event.Type, output string, pos, length int) *event.Event {
	return &event.Event{
		ID:            id,
		Type:          typ,
		Output:        output,
		PositionFull:  pos,
		DocLengthFull: length,
	}
}

func key(id int, output string, pos, length int) *event.Event {
	return ev(id, event.TypeKeyboard, output, pos, length)
}

func wordFocus(id, length int) *event.Event {
	return ev(id, event.TypeFocus, "Wordlog - Microsoft Word", 0, length)
}

// logOf copies events into a log in the given order.
func logOf(events ...*event.Event) *event.Log {
	out := make([]event.Event, len(events))
	for i, e := range events {
		out[i] = *e
	}
	return event.NewLog(out)
}

func window(prev, curr, next *event.Event) Window {
	return NewWindow(prev, curr, next, NewLedger(nil, DefaultContextSize))
}

func kinds(diags []Diagnostic) []Kind {
	out := make([]Kind, len(diags))
	for i, d := range diags {
		out[i] = d.Kind
	}
	return out
}
