package grid

import (
	"fmt"
	"math"
	"math/bits"
)

// maxNeighborPrealloc caps the up-front allocation for very wide squares.
const maxNeighborPrealloc = 1 << 16

// NeighborsSquare returns the identifiers of every cell within r cells of
// cellID on both axes, the center included: (2r+1)² identifiers in total.
// It works on the encoding alone and does not need an Index.
func NeighborsSquare(cellID string, r int) ([]string, error) {
	if r < 0 {
		return nil, fmt.Errorf("%w: neighborhood radius must be non-negative, got %d", ErrInvalidArgument, r)
	}
	if r > (math.MaxInt-1)/2 {
		return nil, fmt.Errorf("%w: neighborhood radius %d is too large", ErrInvalidArgument, r)
	}
	side := 2*r + 1
	if hi, lo := bits.Mul(uint(side), uint(side)); hi != 0 || lo > math.MaxInt {
		return nil, fmt.Errorf("%w: neighborhood radius %d is too large", ErrInvalidArgument, r)
	}

	center, err := DecodeCellID(cellID)
	if err != nil {
		return nil, err
	}
	if !fitsOffset(center.Col, int64(r)) || !fitsOffset(center.Row, int64(r)) {
		return nil, fmt.Errorf("%w: neighborhood of %s by %d wraps around", ErrInvalidArgument, cellID, r)
	}

	out := make([]string, 0, min(side*side, maxNeighborPrealloc))
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			out = append(out, EncodeCellID(center.Offset(int64(dx), int64(dy))))
		}
	}
	return out, nil
}

// fitsOffset reports whether v±r stays within int64.
func fitsOffset(v, r int64) bool {
	return v <= math.MaxInt64-r && v >= math.MinInt64+r
}
