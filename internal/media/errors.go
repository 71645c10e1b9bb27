package media

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange     = errors.New("invalid trim range")
	ErrEmptyInput       = errors.New("merge requires at least two inputs")
	ErrGeometryMismatch = errors.New("merge inputs do not share frame geometry")
	ErrInvalidGeometry  = errors.New("invalid frame geometry")
	ErrInvalidSize      = errors.New("invalid buffer size")
)

// RangeError describes a trim window that does not select at least one frame
// inside the buffer. It matches ErrInvalidRange with errors.Is.
type RangeError struct {
	Window      TrimWindow
	StartFrame  int64
	EndFrame    int64
	TotalFrames int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid trim range %s: frames [%d, %d) of %d",
		e.Window, e.StartFrame, e.EndFrame, e.TotalFrames)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// GeometryMismatchError points at the merge input that could not be combined
// with the others. It matches ErrGeometryMismatch with errors.Is.
type GeometryMismatchError struct {
	Index  int
	Reason string
}

func (e *GeometryMismatchError) Error() string {
	return fmt.Sprintf("merge input %d: %s", e.Index, e.Reason)
}

func (e *GeometryMismatchError) Is(target error) bool {
	return target == ErrGeometryMismatch
}
