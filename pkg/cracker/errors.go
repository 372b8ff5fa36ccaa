package cracker

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when the input ends inside an element.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrTrailingData is returned when a size-bounded region is not fully consumed.
	ErrTrailingData = errors.New("trailing data in bounded region")
	// ErrTokenMismatch is returned when a token element does not match its declared value.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrNoCandidate is returned when no choice candidate cracks.
	ErrNoCandidate = errors.New("no candidate matched")
	// ErrBackwardSeek is returned when an offset points before the cursor.
	ErrBackwardSeek = errors.New("offset points before current position")
	// ErrInvalidLength is returned when a governing field holds an unusable measurement.
	ErrInvalidLength = errors.New("invalid governed length")
	// ErrOccurrences is returned when an array cracks fewer occurrences than its minimum.
	ErrOccurrences = errors.New("occurrence count out of bounds")
)

// Error is a cracking failure at a specific element and stream offset.
type Error struct {
	Path   string
	Offset int // bytes from the start of the stream
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("crack failed at '%s' (offset %d): %v", e.Path, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
