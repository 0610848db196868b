package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Record is one raw field-value log entry as delivered by a log reader.
type Record map[string]string

// Field names of the raw event schema.
const (
	FieldID             = "id"
	FieldType           = "type"
	FieldOutput         = "output"
	FieldPosition       = "position"
	FieldPositionFull   = "positionFull"
	FieldDocLength      = "doclength"
	FieldDocLengthFull  = "doclengthFull"
	FieldCharProduction = "charProduction"
	FieldRawStart       = "RawStart"
	FieldRawEnd         = "RawEnd"
)

// ErrMissingField is wrapped by MalformedEventError when a required field is absent.
var ErrMissingField = errors.New("missing field")

// MalformedEventError reports a raw record that cannot be normalized.
type MalformedEventError struct {
	// Index is the record's position in the raw log, or -1 when unknown.
	Index int
	Field string
	Value string
	Err   error
}

func (e *MalformedEventError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("event: record %d: field %q (%q): %v", e.Index, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("event: field %q (%q): %v", e.Field, e.Value, e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// Normalize converts a raw record into an Event. Integer fields are parsed,
// and keyboard SPACE and RETURN outputs become " " and "\n". rec is not modified.
func Normalize(rec Record) (*Event, error) {
	p := recordParser{rec: rec, index: -1}
	return p.parse()
}

// NormalizeAll normalizes every record in order and builds a Log.
// It stops at the first malformed record.
func NormalizeAll(recs []Record) (*Log, error) {
	events := make([]Event, 0, len(recs))
	for i, rec := range recs {
		p := recordParser{rec: rec, index: i}
		e, err := p.parse()
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return NewLog(events), nil
}

type recordParser struct {
	rec   Record
	index int
}

func (p recordParser) parse() (*Event, error) {
	var e Event
	var err error

	if e.ID, err = p.required(FieldID); err != nil {
		return nil, err
	}
	typ, ok := p.rec[FieldType]
	if !ok {
		return nil, p.fail(FieldType, "", ErrMissingField)
	}
	e.Type = Type(strings.TrimSpace(typ))
	e.Output = p.rec[FieldOutput]

	if e.PositionFull, err = p.required(FieldPositionFull); err != nil {
		return nil, err
	}
	if e.DocLengthFull, err = p.required(FieldDocLengthFull); err != nil {
		return nil, err
	}
	if e.CharProduction, err = p.required(FieldCharProduction); err != nil {
		return nil, err
	}
	if e.Position, err = p.optional(FieldPosition); err != nil {
		return nil, err
	}
	if e.DocLength, err = p.optional(FieldDocLength); err != nil {
		return nil, err
	}
	if e.RawStart, err = p.optional(FieldRawStart); err != nil {
		return nil, err
	}
	if e.RawEnd, err = p.optional(FieldRawEnd); err != nil {
		return nil, err
	}

	if e.Type == TypeKeyboard {
		switch e.Output {
		case OutputSpace:
			e.Output = " "
		case OutputReturn:
			e.Output = "\n"
		}
	}
	return &e, nil
}

func (p recordParser) required(field string) (int, error) {
	v, ok := p.rec[field]
	if !ok {
		return 0, p.fail(field, "", ErrMissingField)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, p.fail(field, v, err)
	}
	return n, nil
}

func (p recordParser) optional(field string) (*int, error) {
	if _, ok := p.rec[field]; !ok {
		return nil, nil
	}
	n, err := p.required(field)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (p recordParser) fail(field, value string, err error) error {
	return &MalformedEventError{Index: p.index, Field: field, Value: value, Err: err}
}
