package geometry

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimension is returned for non-positive grid sizes, distances or step units.
	ErrInvalidDimension = errors.New("geometry: dimensions must be positive")
	// ErrOutOfRange is returned for indices or cells outside the grid.
	ErrOutOfRange = errors.New("geometry: outside grid")
)

// Cell is a 0-indexed grid position.
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Grid assigns every cell of a rows x cols area its visiting order, 1-based,
// along a serpentine path: even rows run left to right, odd rows right to left.
//
//	Build(2, 3) => [[1 2 3]
//	                [6 5 4]]
//
// A Grid is immutable once built.
type Grid struct {
	rows  int
	cols  int
	order [][]int
}

// Build returns the serpentine grid for rows x cols.
func Build(rows, cols int) (*Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrInvalidDimension, rows, cols)
	}
	g := &Grid{rows: rows, cols: cols, order: make([][]int, rows)}
	for r := 0; r < rows; r++ {
		g.order[r] = make([]int, cols)
		for c := 0; c < cols; c++ {
			if r%2 == 0 {
				g.order[r][c] = r*cols + c + 1
			} else {
				g.order[r][c] = (r+1)*cols - c
			}
		}
	}
	return g, nil
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// Size returns the number of cells, which is also the last index.
func (g *Grid) Size() int { return g.rows * g.cols }

// Contains reports whether c lies inside the grid.
func (g *Grid) Contains(c Cell) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// IndexToCell returns the cell visited at index (1..Size).
func (g *Grid) IndexToCell(index int) (Cell, error) {
	if index < 1 || index > g.Size() {
		return Cell{}, fmt.Errorf("%w: index %d not in 1..%d", ErrOutOfRange, index, g.Size())
	}
	row := (index - 1) / g.cols
	off := (index - 1) % g.cols
	if row%2 == 1 {
		off = g.cols - 1 - off
	}
	return Cell{Row: row, Col: off}, nil
}

// CellToIndex is the inverse of IndexToCell.
func (g *Grid) CellToIndex(c Cell) (int, error) {
	if !g.Contains(c) {
		return 0, fmt.Errorf("%w: cell %v in %dx%d grid", ErrOutOfRange, c, g.rows, g.cols)
	}
	return g.order[c.Row][c.Col], nil
}

// Matrix returns a copy of the visiting order, row-major.
func (g *Grid) Matrix() [][]int {
	out := make([][]int, g.rows)
	for r := range g.order {
		out[r] = append([]int(nil), g.order[r]...)
	}
	return out
}
