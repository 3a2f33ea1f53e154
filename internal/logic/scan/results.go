package scan

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
)

// Results is the measured value of every grid cell, NaN until measured.
type Results struct {
	m *mat.Dense
}

// NewResults returns a rows x cols matrix with every cell unmeasured.
func NewResults(rows, cols int) *Results {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Results{m: mat.NewDense(rows, cols, data)}
}

func (r *Results) Rows() int {
	rows, _ := r.m.Dims()
	return rows
}

func (r *Results) Cols() int {
	_, cols := r.m.Dims()
	return cols
}

func (r *Results) At(c geometry.Cell) float64 {
	return r.m.At(c.Row, c.Col)
}

func (r *Results) Set(c geometry.Cell, v float64) {
	r.m.Set(c.Row, c.Col, v)
}

// Measured reports whether c holds a value.
func (r *Results) Measured(c geometry.Cell) bool {
	return !math.IsNaN(r.At(c))
}

// Count returns the number of measured cells.
func (r *Results) Count() int {
	n := 0
	rows, cols := r.m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !math.IsNaN(r.m.At(i, j)) {
				n++
			}
		}
	}
	return n
}

// Max returns the largest measured value and its cell, first in row-major
// order on ties. ok is false when nothing was measured.
func (r *Results) Max() (cell geometry.Cell, v float64, ok bool) {
	rows, cols := r.m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x := r.m.At(i, j)
			if math.IsNaN(x) {
				continue
			}
			if !ok || x > v {
				cell, v, ok = geometry.Cell{Row: i, Col: j}, x, true
			}
		}
	}
	return cell, v, ok
}

// Matrix returns a row-major copy.
func (r *Results) Matrix() [][]float64 {
	rows, _ := r.m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, r.m)
	}
	return out
}

// Dense returns a copy as a gonum matrix.
func (r *Results) Dense() *mat.Dense {
	return mat.DenseCopyOf(r.m)
}

// Clone returns an independent copy.
func (r *Results) Clone() *Results {
	return &Results{m: r.Dense()}
}
