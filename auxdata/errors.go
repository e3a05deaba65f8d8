package auxdata

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned when a frame window falls outside the file
	ErrInvalidRange = errors.New("invalid frame range")
	// ErrUnknownVariable is returned when selecting a variable the file does not have
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrMissingBeginSource is returned when a file has no way to establish its begin timestamp
	ErrMissingBeginSource = errors.New("either specify begin timestamp or timestamp column")
	// ErrInconsistentSampleRate marks the diagnostic emitted for irregularly sampled files.
	// It is logged, never returned.
	ErrInconsistentSampleRate = errors.New("inconsistent sampling rate")
)

// RangeError reports which bound of a frame window was violated
type RangeError struct {
	Bound  string // "start", "stop" or "order"
	Start  int
	Stop   int
	Frames int
}

func (e *RangeError) Error() string {
	switch e.Bound {
	case "start":
		return fmt.Sprintf("start should be between 0 and the last frame of the auxiliary file (start=%d, frames=%d)", e.Start, e.Frames)
	case "stop":
		return fmt.Sprintf("stop should be between 0 and the frame count of the auxiliary file (stop=%d, frames=%d)", e.Stop, e.Frames)
	default:
		return fmt.Sprintf("start should be inferior to stop (start=%d, stop=%d)", e.Start, e.Stop)
	}
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}

// VariableError names a variable absent from a file
type VariableError struct {
	Name string
	Path string
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("variable %q is not in %s", e.Name, e.Path)
}

func (e *VariableError) Unwrap() error {
	return ErrUnknownVariable
}

// checkRange validates [start, stop) against a file of frames frames
func checkRange(start, stop, frames int) error {
	if start < 0 || start >= frames {
		return &RangeError{Bound: "start", Start: start, Stop: stop, Frames: frames}
	}
	if stop < 0 || stop > frames {
		return &RangeError{Bound: "stop", Start: start, Stop: stop, Frames: frames}
	}
	if start > stop {
		return &RangeError{Bound: "order", Start: start, Stop: stop, Frames: frames}
	}
	return nil
}
