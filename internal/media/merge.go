package media

import (
	"fmt"
	"math/big"
)

// Merge concatenates buffers byte for byte in input order. The duration is the
// sum of each input's raw estimate rather than an estimate of the total size,
// so every input's fractional tail is accounted for individually.
//
// Merge does not check that the inputs were recorded with g; see
// CheckFrameAligned for the opt-in check.
func Merge(buffers [][]byte, g Geometry) (*Result, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	var total int64
	sizes := make([]int64, len(buffers))
	for i, b := range buffers {
		sizes[i] = int64(len(b))
		total += sizes[i]
	}

	duration, err := MergedDuration(sizes, g)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, total)
	var frames int64
	for _, b := range buffers {
		out = append(out, b...)
		frames += int64(len(b)) / g.FrameSize()
	}

	return &Result{
		Data:     out,
		Frames:   frames,
		Duration: duration,
	}, nil
}

// MergedDuration sums EstimateRawExact over sizes and converts once.
func MergedDuration(sizes []int64, g Geometry) (float64, error) {
	sum := new(big.Rat)
	for _, size := range sizes {
		d, err := EstimateRawExact(size, g)
		if err != nil {
			return 0, err
		}
		sum.Add(sum, d)
	}
	f, _ := sum.Float64()
	return f, nil
}

// CheckFrameAligned rejects a merge input whose length is not a whole number of
// frames under g, which is the only geometry signal a raw buffer carries.
func CheckFrameAligned(index int, size int64, g Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if rem := size % g.FrameSize(); rem != 0 {
		return &GeometryMismatchError{
			Index:  index,
			Reason: fmt.Sprintf("%d bytes is not a whole number of %s frames (%d bytes left over)", size, g, rem),
		}
	}
	return nil
}
