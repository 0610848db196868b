package replay

import (
	"errors"
	"fmt"

	"textreplay/internal/event"
)

var (
	// ErrUnknownDeleteSequence is matched by UnknownDeleteSequenceError.
	ErrUnknownDeleteSequence = errors.New("unknown delete sequence")

	// ErrNoChange is matched by NoChangeError.
	ErrNoChange = errors.New("event does not change text")
)

// UnknownDeleteSequenceError reports a shrinking event that matches none of
// the known removal shapes. Reconstruction cannot continue past it.
type UnknownDeleteSequenceError struct {
	EventID int
	Type    event.Type
	Output  string
	Reason  string
}

func (e *UnknownDeleteSequenceError) Error() string {
	msg := fmt.Sprintf("replay: event %d (%s %q): %v", e.EventID, e.Type, e.Output, ErrUnknownDeleteSequence)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnknownDeleteSequenceError) Is(target error) bool {
	return target == ErrUnknownDeleteSequence
}

// NoChangeError reports Apply called on a window that neither grows nor
// shrinks the text. It indicates a fold bug, not bad data.
type NoChangeError struct {
	EventID int
}

func (e *NoChangeError) Error() string {
	return fmt.Sprintf("replay: event %d: %v", e.EventID, ErrNoChange)
}

func (e *NoChangeError) Is(target error) bool {
	return target == ErrNoChange
}
