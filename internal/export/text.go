// Package export writes scan results to files: text matrices, heat maps and
// a YAML manifest describing the scan.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// WriteMatrix writes values as tab-delimited rows with four decimals.
// Unmeasured points (NaN) are written as "NaN".
func WriteMatrix(w io.Writer, values [][]float64) error {
	bw := bufio.NewWriter(w)
	for _, row := range values {
		for j, v := range row {
			if j > 0 {
				bw.WriteByte('\t')
			}
			bw.WriteString(formatValue(v))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteColumn writes one value per line in traversal order. grid holds the
// 1-based visiting order of every cell, as returned by geometry.Grid.Matrix.
func WriteColumn(w io.Writer, grid [][]int, values [][]float64) error {
	ordered, err := traversalOrder(grid, values)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for _, v := range ordered {
		bw.WriteString(formatValue(v))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func traversalOrder(grid [][]int, values [][]float64) ([]float64, error) {
	if len(grid) != len(values) {
		return nil, fmt.Errorf("export: grid has %d rows, values %d", len(grid), len(values))
	}
	n := 0
	for i := range grid {
		if len(grid[i]) != len(values[i]) {
			return nil, fmt.Errorf("export: row %d: grid has %d columns, values %d", i, len(grid[i]), len(values[i]))
		}
		n += len(grid[i])
	}
	out := make([]float64, n)
	for i, row := range grid {
		for j, idx := range row {
			if idx < 1 || idx > n {
				return nil, fmt.Errorf("export: index %d at (%d,%d) outside 1..%d", idx, i, j, n)
			}
			out[idx-1] = values[i][j]
		}
	}
	return out, nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.4f", v)
}

// valueRange returns the smallest and largest measured values. ok is false
// when nothing was measured.
func valueRange(values [][]float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	if !ok {
		return 0, 1, false
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi, true
}
