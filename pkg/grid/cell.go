package grid

import "math"

// Cell is an integer grid coordinate. The origin always lies in Cell{0, 0}.
type Cell struct {
	Col int64
	Row int64
}

// CellOf returns the cell containing p for the given cell size.
// Cells are closed on the lower/left edge and open on the upper/right edge,
// so a point exactly on a boundary belongs to the higher-index cell.
func CellOf(p Point, cellSize float64) Cell {
	return Cell{
		Col: int64(math.Floor(p.X / cellSize)),
		Row: int64(math.Floor(p.Y / cellSize)),
	}
}

// Offset returns the cell dx columns and dy rows away from c.
func (c Cell) Offset(dx, dy int64) Cell {
	return Cell{Col: c.Col + dx, Row: c.Row + dy}
}

// ID returns the encoded identifier of c.
func (c Cell) ID() string {
	return EncodeCellID(c)
}
