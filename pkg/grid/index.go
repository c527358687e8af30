package grid

import (
	"fmt"
	"math"
)

// entry is one stored payload together with its projected position.
type entry[T any] struct {
	pt      Point
	payload T
}

// Row is one observation for BulkInsert.
type Row[T any] struct {
	Lat     float64
	Lon     float64
	Payload T
}

// Index buckets payloads into square cells of a fixed size around a fixed
// origin. Buckets are created on first insert and never removed.
//
// Index has no internal locking. Concurrent reads after population are safe;
// callers that insert while others query must synchronize externally.
type Index[T any] struct {
	cellSize float64
	origin   Origin
	buckets  map[Cell][]entry[T]
	size     int
}

// NewIndex creates an empty index. cellSize is the side of a cell in meters
// (100-300 suits hiking-scale data). The origin must stay the same for as long
// as identifiers produced by the index are kept anywhere.
func NewIndex[T any](cellSize float64, origin Origin) (*Index[T], error) {
	if !isFinite(cellSize) || cellSize <= 0 {
		return nil, fmt.Errorf("%w: cell size must be a positive finite number, got %v", ErrInvalidArgument, cellSize)
	}
	if !origin.valid() {
		return nil, fmt.Errorf("%w: origin must be finite, got (%v, %v)", ErrInvalidArgument, origin.Lat, origin.Lon)
	}
	return &Index[T]{
		cellSize: cellSize,
		origin:   origin,
		buckets:  make(map[Cell][]entry[T]),
	}, nil
}

// CellSize returns the cell side length in meters.
func (g *Index[T]) CellSize() float64 {
	return g.cellSize
}

// Origin returns the projection origin.
func (g *Index[T]) Origin() Origin {
	return g.origin
}

// Insert stores payload at lat/lon and returns the identifier of its cell.
func (g *Index[T]) Insert(lat, lon float64, payload T) (string, error) {
	c, pt, err := g.locate(lat, lon)
	if err != nil {
		return "", err
	}
	g.buckets[c] = append(g.buckets[c], entry[T]{pt: pt, payload: payload})
	g.size++
	return EncodeCellID(c), nil
}

// BulkInsert inserts rows in order. It stops at the first invalid row; rows
// before it remain inserted.
func (g *Index[T]) BulkInsert(rows []Row[T]) error {
	for i, r := range rows {
		if _, err := g.Insert(r.Lat, r.Lon, r.Payload); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// CellAt returns the cell lat/lon falls in without inserting anything.
func (g *Index[T]) CellAt(lat, lon float64) (Cell, error) {
	c, _, err := g.locate(lat, lon)
	return c, err
}

// CellIDAt returns the identifier of the cell lat/lon falls in.
func (g *Index[T]) CellIDAt(lat, lon float64) (string, error) {
	c, err := g.CellAt(lat, lon)
	if err != nil {
		return "", err
	}
	return EncodeCellID(c), nil
}

// CandidatesNear returns every payload stored in the square of cells that
// circumscribes the circle of radiusM around lat/lon. Every payload within
// radiusM (in the projected plane) is included; payloads outside it may be
// too. Results are grouped by bucket in no particular order and are not
// de-duplicated.
func (g *Index[T]) CandidatesNear(lat, lon, radiusM float64) ([]T, error) {
	if !isFinite(radiusM) || radiusM < 0 {
		return nil, fmt.Errorf("%w: radius must be a non-negative finite number, got %v", ErrInvalidArgument, radiusM)
	}
	center, _, err := g.locate(lat, lon)
	if err != nil {
		return nil, err
	}
	// Kept as a float: a huge finite radius does not fit in an int64.
	rf := math.Ceil(radiusM / g.cellSize)

	var out []T
	// A square wider than the number of populated cells is cheaper to answer
	// by walking the buckets.
	if side := 2*rf + 1; side*side > float64(len(g.buckets)) {
		for c, bucket := range g.buckets {
			if cellDist(c.Col, center.Col) <= rf && cellDist(c.Row, center.Row) <= rf {
				out = appendPayloads(out, bucket)
			}
		}
		return out, nil
	}

	// side² is bounded by the bucket count here, so r is small.
	r := int64(rf)
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			if bucket, ok := g.buckets[center.Offset(dx, dy)]; ok {
				out = appendPayloads(out, bucket)
			}
		}
	}
	return out, nil
}

// BucketCount returns the number of non-empty cells.
func (g *Index[T]) BucketCount() int {
	return len(g.buckets)
}

// Size returns the total number of stored entries.
func (g *Index[T]) Size() int {
	return g.size
}

func (g *Index[T]) locate(lat, lon float64) (Cell, Point, error) {
	if !isFinite(lat) || !isFinite(lon) {
		return Cell{}, Point{}, fmt.Errorf("%w: coordinates must be finite, got (%v, %v)", ErrInvalidArgument, lat, lon)
	}
	pt := Project(lat, lon, g.origin)
	return CellOf(pt, g.cellSize), pt, nil
}

func appendPayloads[T any](out []T, bucket []entry[T]) []T {
	for _, e := range bucket {
		out = append(out, e.payload)
	}
	return out
}

// cellDist is |a-b| computed without int64 overflow.
func cellDist(a, b int64) float64 {
	if a >= b {
		return float64(uint64(a) - uint64(b))
	}
	return float64(uint64(b) - uint64(a))
}
