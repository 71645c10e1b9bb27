package media

import (
	"fmt"
	"math/big"
)

// EstimateRawExact returns size / (frameSize * frameRate) seconds as an exact
// rational. No rounding is applied; a partial trailing frame contributes its
// fractional share.
func EstimateRawExact(size int64, g Geometry) (*big.Rat, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return big.NewRat(size, g.BytesPerSecond()), nil
}

// EstimateRaw is EstimateRawExact converted to float64 seconds. A zero-byte
// buffer yields 0.
func EstimateRaw(size int64, g Geometry) (float64, error) {
	r, err := EstimateRawExact(size, g)
	if err != nil {
		return 0, err
	}
	f, _ := r.Float64()
	return f, nil
}
