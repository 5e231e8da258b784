package pff

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every decoding error returned by this package matches
// exactly one of them with errors.Is. Errors of the underlying reader are
// returned unchanged inside a FormatError and match none of them.
var (
	// ErrInvalidPFF is returned when the document is structurally corrupt.
	ErrInvalidPFF = errors.New("pff: invalid document")

	// ErrUnsupported is returned for well-formed data that uses a format or feature
	// this package does not decode.
	ErrUnsupported = errors.New("pff: unsupported")

	// ErrReference is returned when a delta-coded video chunk has no usable reference frame.
	ErrReference = errors.New("pff: invalid reference frame")

	// ErrNoFrameRate is returned by Framerate when fewer than two frames were decoded.
	ErrNoFrameRate = errors.New("pff: not enough frames to derive frame rate")

	// ErrNonConstantFrameRate is returned by Framerate when frame timestamps are not evenly spaced.
	ErrNonConstantFrameRate = errors.New("pff: non-constant frame rate")
)

// FormatError records where in the document decoding failed.
// Frame is -1 for errors in the document header.
type FormatError struct {
	Offset int64
	Frame  int
	Field  string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("pff: header at offset %d: %s: %v", e.Offset, e.Field, e.Err)
	}

	return fmt.Sprintf("pff: frame %d at offset %d: %s: %v", e.Frame, e.Offset, e.Field, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func newFormatError(offset int64, frame int, field string, err error) *FormatError {
	return &FormatError{
		Offset: offset,
		Frame:  frame,
		Field:  field,
		Err:    classify(err),
	}
}

// classify marks errors that do not carry a sentinel yet as structural corruption.
func classify(err error) error {
	if errors.Is(err, ErrInvalidPFF) || errors.Is(err, ErrUnsupported) || errors.Is(err, ErrReference) {
		return err
	}

	var rerr *readError
	if errors.As(err, &rerr) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrInvalidPFF, err)
}
