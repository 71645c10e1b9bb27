package media

import "fmt"

// WindowKind tags which ends of a buffer a TrimWindow cuts.
type WindowKind int

const (
	WindowNone WindowKind = iota
	WindowFromStart
	WindowFromEnd
	WindowBoth
)

func (k WindowKind) String() string {
	switch k {
	case WindowNone:
		return "none"
	case WindowFromStart:
		return "from_start"
	case WindowFromEnd:
		return "from_end"
	case WindowBoth:
		return "both"
	default:
		return fmt.Sprintf("WindowKind(%d)", int(k))
	}
}

// TrimWindow says how many seconds to cut from the start and/or the end of a
// buffer. The zero value cuts nothing.
type TrimWindow struct {
	kind  WindowKind
	start float64
	end   float64
}

// NoTrim keeps the whole buffer.
func NoTrim() TrimWindow {
	return TrimWindow{kind: WindowNone}
}

// FromStart drops the first seconds of the buffer.
func FromStart(seconds float64) TrimWindow {
	return TrimWindow{kind: WindowFromStart, start: seconds}
}

// FromEnd drops the last seconds of the buffer.
func FromEnd(seconds float64) TrimWindow {
	return TrimWindow{kind: WindowFromEnd, end: seconds}
}

// Both drops start seconds from the front and end seconds from the back.
func Both(start, end float64) TrimWindow {
	return TrimWindow{kind: WindowBoth, start: start, end: end}
}

// WindowOf builds a window from optional offsets, as they arrive from request
// bodies and command-line flags.
func WindowOf(start, end *float64) TrimWindow {
	switch {
	case start != nil && end != nil:
		return Both(*start, *end)
	case start != nil:
		return FromStart(*start)
	case end != nil:
		return FromEnd(*end)
	default:
		return NoTrim()
	}
}

func (w TrimWindow) Kind() WindowKind { return w.kind }

// Start returns the seconds cut from the front, 0 when the window has none.
func (w TrimWindow) Start() float64 {
	if w.kind == WindowFromStart || w.kind == WindowBoth {
		return w.start
	}
	return 0
}

// End returns the seconds cut from the back, 0 when the window has none.
func (w TrimWindow) End() float64 {
	if w.kind == WindowFromEnd || w.kind == WindowBoth {
		return w.end
	}
	return 0
}

func (w TrimWindow) String() string {
	switch w.kind {
	case WindowFromStart:
		return fmt.Sprintf("from_start(%gs)", w.start)
	case WindowFromEnd:
		return fmt.Sprintf("from_end(%gs)", w.end)
	case WindowBoth:
		return fmt.Sprintf("both(%gs, %gs)", w.start, w.end)
	default:
		return "none"
	}
}
