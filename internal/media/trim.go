package media

import (
	"math"
)

// frameEpsilon absorbs binary representation error when seconds are scaled
// to frames, so 0.7s at 30 fps is 21 frames and not 20.
const frameEpsilon = 1e-9

const maxFrames = 1 << 53

// Result is a derived raw buffer together with its frame count and duration.
type Result struct {
	Data     []byte
	Frames   int64
	Duration float64
}

// FrameRange is the half-open frame interval [StartFrame, EndFrame) selected
// from a buffer holding TotalFrames whole frames.
type FrameRange struct {
	StartFrame  int64
	EndFrame    int64
	TotalFrames int64
}

// Frames returns the number of frames in the range.
func (r FrameRange) Frames() int64 {
	return r.EndFrame - r.StartFrame
}

// ByteOffsets returns the half-open byte interval covered by the range.
func (r FrameRange) ByteOffsets(g Geometry) (start, end int64) {
	fs := g.FrameSize()
	return r.StartFrame * fs, r.EndFrame * fs
}

// Duration returns Frames / frameRate seconds.
func (r FrameRange) Duration(g Geometry) float64 {
	return float64(r.Frames()) / float64(g.FrameRate)
}

// TrimRange computes which frames of a size-byte buffer survive the window.
// Windows that exceed the available duration are rejected, never clamped.
func TrimRange(size int64, g Geometry, w TrimWindow) (FrameRange, error) {
	if err := g.Validate(); err != nil {
		return FrameRange{}, err
	}
	if size < 0 {
		return FrameRange{}, ErrInvalidSize
	}

	total := size / g.FrameSize()
	startFrame, okStart := secondsToFrames(w.Start(), g.FrameRate)
	cutFrames, okEnd := secondsToFrames(w.End(), g.FrameRate)

	r := FrameRange{
		StartFrame:  startFrame,
		EndFrame:    total - cutFrames,
		TotalFrames: total,
	}
	if !okStart || !okEnd || r.StartFrame < 0 || r.StartFrame >= r.EndFrame || r.EndFrame > total {
		return FrameRange{}, &RangeError{
			Window:      w,
			StartFrame:  r.StartFrame,
			EndFrame:    r.EndFrame,
			TotalFrames: total,
		}
	}
	return r, nil
}

// Trim copies the frames selected by w out of buf. The input is never
// modified and the result never aliases it.
func Trim(buf []byte, g Geometry, w TrimWindow) (*Result, error) {
	r, err := TrimRange(int64(len(buf)), g, w)
	if err != nil {
		return nil, err
	}

	start, end := r.ByteOffsets(g)
	out := make([]byte, end-start)
	copy(out, buf[start:end])

	return &Result{
		Data:     out,
		Frames:   r.Frames(),
		Duration: r.Duration(g),
	}, nil
}

// secondsToFrames floors seconds*rate after adding frameEpsilon, so a decimal
// offset that lands exactly on a frame boundary (0.7s at 30 fps) is not
// pushed one frame early by float rounding. It reports false for values that
// do not describe a finite frame count.
func secondsToFrames(seconds float64, rate int) (int64, bool) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, false
	}
	f := math.Floor(seconds*float64(rate) + frameEpsilon)
	if f > maxFrames || f < -maxFrames {
		return 0, false
	}
	return int64(f), true
}
