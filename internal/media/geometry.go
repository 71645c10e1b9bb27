package media

import (
	"fmt"
	"math"
	"math/bits"
)

// Geometry is the fixed frame layout of a raw video buffer. It is the only
// basis for converting between byte offsets and time.
type Geometry struct {
	Width         int
	Height        int
	BytesPerPixel int
	FrameRate     int
}

// DefaultGeometry is 320x240 RGB24 at 30 fps.
var DefaultGeometry = Geometry{
	Width:         320,
	Height:        240,
	BytesPerPixel: 3,
	FrameRate:     30,
}

// FrameSize returns width * height * bytesPerPixel.
func (g Geometry) FrameSize() int64 {
	return int64(g.Width) * int64(g.Height) * int64(g.BytesPerPixel)
}

// BytesPerSecond returns the number of bytes one second of raw video occupies.
func (g Geometry) BytesPerSecond() int64 {
	return g.FrameSize() * int64(g.FrameRate)
}

// Validate reports whether every dimension and the frame rate are positive
// and one second of video fits in an int64 byte count.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.BytesPerPixel <= 0 {
		return fmt.Errorf("%w: %dx%d at %d bytes/pixel", ErrInvalidGeometry, g.Width, g.Height, g.BytesPerPixel)
	}
	if g.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate %d", ErrInvalidGeometry, g.FrameRate)
	}
	if !fitsInt64(g.Width, g.Height, g.BytesPerPixel, g.FrameRate) {
		return fmt.Errorf("%w: %s overflows the byte rate", ErrInvalidGeometry, g)
	}
	return nil
}

// fitsInt64 reports whether the product of the positive factors is at most
// math.MaxInt64.
func fitsInt64(factors ...int) bool {
	product := uint64(1)
	for _, f := range factors {
		hi, lo := bits.Mul64(product, uint64(f))
		if hi != 0 || lo > math.MaxInt64 {
			return false
		}
		product = lo
	}
	return true
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%dx%d@%dfps", g.Width, g.Height, g.BytesPerPixel, g.FrameRate)
}
