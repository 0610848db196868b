package event

import (
	"regexp"
	"strconv"
	"unicode/utf8"
)

var replacementPattern = regexp.MustCompile(`^\[(\d+):(\d+)\]((?s:.*))`)

// Span is the decoded payload of a replacement record: the character range
// [Start, End) and the text that occupied it.
type Span struct {
	Start int
	End   int
	Text  string
}

// Len returns the number of characters the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

// ParseReplacement decodes "[<start>:<end>]<text>" from e's output.
// It returns false when e is nil, the output does not match, or start > end.
func ParseReplacement(e *Event) (Span, bool) {
	if e == nil {
		return Span{}, false
	}
	return ParseSpan(e.Output)
}

// ParseSpan decodes a replacement payload.
func ParseSpan(s string) (Span, bool) {
	m := replacementPattern.FindStringSubmatch(s)
	if m == nil {
		return Span{}, false
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return Span{}, false
	}
	end, err := strconv.Atoi(m[2])
	if err != nil || start > end {
		return Span{}, false
	}
	return Span{Start: start, End: end, Text: m[3]}, true
}

// TextLen returns the character count of the span's text.
func (s Span) TextLen() int {
	return utf8.RuneCountInString(s.Text)
}
