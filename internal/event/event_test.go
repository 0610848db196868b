package event

import (
	"errors"
	"strconv"
	"testing"
)

func validRecord() Record {
	return Record{
		FieldID:             "7",
		FieldType:           "keyboard",
		FieldOutput:         "a",
		FieldPositionFull:   "3",
		FieldDocLengthFull:  "4",
		FieldCharProduction: "1",
	}
}

func TestNormalize(t *testing.T) {
	e, err := Normalize(validRecord())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if e.ID != 7 || e.Type != TypeKeyboard || e.Output != "a" {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.PositionFull != 3 || e.DocLengthFull != 4 || e.CharProduction != 1 {
		t.Errorf("unexpected numeric fields: %+v", e)
	}
	if e.Position != nil || e.DocLength != nil || e.RawStart != nil || e.RawEnd != nil {
		t.Error("absent optional fields should stay nil")
	}
}

func TestNormalizeOptionalFields(t *testing.T) {
	rec := validRecord()
	rec[FieldPosition] = "2"
	rec[FieldDocLength] = " 5 "
	rec[FieldRawStart] = "1000"
	rec[FieldRawEnd] = "1050"

	e, err := Normalize(rec)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if e.Position == nil || *e.Position != 2 {
		t.Errorf("position = %v", e.Position)
	}
	if e.DocLength == nil || *e.DocLength != 5 {
		t.Errorf("doclength = %v", e.DocLength)
	}
	if e.RawStart == nil || *e.RawStart != 1000 || e.RawEnd == nil || *e.RawEnd != 1050 {
		t.Errorf("raw timing = %v %v", e.RawStart, e.RawEnd)
	}
}

func TestNormalizeRewritesWhitespaceKeys(t *testing.T) {
	tests := []struct {
		typ    string
		output string
		want   string
	}{
		{"keyboard", "SPACE", " "},
		{"keyboard", "RETURN", "\n"},
		{"keyboard", "x", "x"},
		{"insert", "SPACE", "SPACE"},
		{"mouse", "RETURN", "RETURN"},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.output, func(t *testing.T) {
			rec := validRecord()
			rec[FieldType] = tt.typ
			rec[FieldOutput] = tt.output
			e, err := Normalize(rec)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if e.Output != tt.want {
				t.Errorf("output = %q, want %q", e.Output, tt.want)
			}
			if rec[FieldOutput] != tt.output {
				t.Error("raw record was modified")
			}
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   *string
		missing bool
	}{
		{name: "missing id", field: FieldID, missing: true},
		{name: "missing type", field: FieldType, missing: true},
		{name: "missing positionFull", field: FieldPositionFull, missing: true},
		{name: "missing doclengthFull", field: FieldDocLengthFull, missing: true},
		{name: "missing charProduction", field: FieldCharProduction, missing: true},
		{name: "non-numeric id", field: FieldID, value: ptr("seven")},
		{name: "non-numeric doclengthFull", field: FieldDocLengthFull, value: ptr("4.5")},
		{name: "non-numeric optional position", field: FieldPosition, value: ptr("")},
		{name: "non-numeric RawEnd", field: FieldRawEnd, value: ptr("soon")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			if tt.missing {
				delete(rec, tt.field)
			} else {
				rec[tt.field] = *tt.value
			}

			_, err := Normalize(rec)
			var me *MalformedEventError
			if !errors.As(err, &me) {
				t.Fatalf("expected MalformedEventError, got %v", err)
			}
			if me.Field != tt.field {
				t.Errorf("field = %q, want %q", me.Field, tt.field)
			}
			if tt.missing && !errors.Is(err, ErrMissingField) {
				t.Errorf("expected ErrMissingField, got %v", err)
			}
		})
	}
}

func TestNormalizeAll(t *testing.T) {
	recs := make([]Record, 3)
	for i := range recs {
		recs[i] = validRecord()
		recs[i][FieldID] = strconv.Itoa(i)
	}

	log, err := NormalizeAll(recs)
	if err != nil {
		t.Fatalf("NormalizeAll failed: %v", err)
	}
	if log.Len() != 3 {
		t.Fatalf("len = %d, want 3", log.Len())
	}
	for i, e := range log.All() {
		if e.ID != i {
			t.Errorf("event %d has id %d", i, e.ID)
		}
		if log.At(i) != e {
			t.Errorf("At(%d) does not return the same record", i)
		}
	}
	if log.At(-1) != nil || log.At(3) != nil {
		t.Error("out of range lookups should return nil")
	}
}

func TestNormalizeAllStopsOnMalformed(t *testing.T) {
	recs := []Record{validRecord(), validRecord()}
	recs[1][FieldPositionFull] = "x"

	_, err := NormalizeAll(recs)
	var me *MalformedEventError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedEventError, got %v", err)
	}
	if me.Index != 1 {
		t.Errorf("index = %d, want 1", me.Index)
	}
}

func TestParseReplacement(t *testing.T) {
	tests := []struct {
		output string
		want   Span
		ok     bool
	}{
		{"[1:3]bc", Span{Start: 1, End: 3, Text: "bc"}, true},
		{"[1:1]", Span{Start: 1, End: 1}, true},
		{"[0:12]two\nlines", Span{Start: 0, End: 12, Text: "two\nlines"}, true},
		{"[10:20] leading space", Span{Start: 10, End: 20, Text: " leading space"}, true},
		{"[3:1]bad", Span{}, false},
		{"[a:1]", Span{}, false},
		{"1:3 bc", Span{}, false},
		{"", Span{}, false},
		{"[99999999999999999999:1]", Span{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			got, ok := ParseReplacement(&Event{Type: TypeReplacement, Output: tt.output})
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("span = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, ok := ParseReplacement(nil); ok {
		t.Error("nil event should not parse")
	}
}

func TestSpanLen(t *testing.T) {
	s := Span{Start: 2, End: 5, Text: "héé"}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
	if s.TextLen() != 3 {
		t.Errorf("TextLen = %d, want 3", s.TextLen())
	}
}

func TestSpecialOutputs(t *testing.T) {
	for _, tok := range []string{"BACK", "DELETE", "RIGHT", "LEFT", "DOWN", "UP", "END", "ESCAPE",
		"LSHIFT", "LCTRL + LALT", "LCTRL + LALT + @", "LALT + LCTRL", "LALT + LCTRL + @",
		"LEFT Click", "TASKBAR"} {
		if !IsSpecialOutput(tok) {
			t.Errorf("%q should be special", tok)
		}
	}
	for _, tok := range []string{"a", " ", "\n", "LCTRL v", "LEFT + z", "HOME"} {
		if IsSpecialOutput(tok) {
			t.Errorf("%q should not be special", tok)
		}
	}
	if len(SpecialOutputs()) != 15 {
		t.Errorf("expected 15 special outputs, got %d", len(SpecialOutputs()))
	}
}

func TestShortcutPredicates(t *testing.T) {
	key := func(out string) *Event { return &Event{Type: TypeKeyboard, Output: out} }

	if !IsKeyboardCut(key("LCTRL x")) || !IsKeyboardCut(key("RCTRL x")) || IsKeyboardCut(key("x")) {
		t.Error("IsKeyboardCut mismatch")
	}
	if !IsKeyboardCopy(key("LCTRL c")) || !IsKeyboardCopy(key("RCTRL c")) || IsKeyboardCopy(key("LCTRL v")) {
		t.Error("IsKeyboardCopy mismatch")
	}
	if !IsKeyboardPaste(key("LCTRL v")) || !IsKeyboardPaste(key("RCTRL v")) {
		t.Error("IsKeyboardPaste mismatch")
	}
	if IsKeyboardPaste(&Event{Type: TypeMouse, Output: "LCTRL v"}) {
		t.Error("mouse event cannot be a paste shortcut")
	}
	if !IsLeftClick(&Event{Type: TypeMouse, Output: OutputLeftClick}) {
		t.Error("IsLeftClick mismatch")
	}
	if IsLeftClick(key(OutputLeftClick)) {
		t.Error("keyboard event cannot be a left click")
	}
	if IsReplacement(nil) || IsInsert(nil) || IsKeyboard(nil) || IsLeftClick(nil) {
		t.Error("nil events never match")
	}
}

func ptr(s string) *string { return &s }
