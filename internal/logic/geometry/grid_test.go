package geometry

import (
	"errors"
	"reflect"
	"testing"
)

func TestBuild_KnownShapes(t *testing.T) {
	cases := []struct {
		rows, cols int
		want       [][]int
	}{
		{1, 1, [][]int{{1}}},
		{1, 4, [][]int{{1, 2, 3, 4}}},
		{2, 3, [][]int{{1, 2, 3}, {6, 5, 4}}},
		{3, 3, [][]int{{1, 2, 3}, {6, 5, 4}, {7, 8, 9}}},
		{4, 1, [][]int{{1}, {2}, {3}, {4}}},
	}
	for _, tc := range cases {
		g, err := Build(tc.rows, tc.cols)
		if err != nil {
			t.Fatalf("Build(%d,%d): %v", tc.rows, tc.cols, err)
		}
		if got := g.Matrix(); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Build(%d,%d) = %v, want %v", tc.rows, tc.cols, got, tc.want)
		}
	}
}

func TestBuild_InvalidDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 3}, {3, 0}, {-1, 2}} {
		if _, err := Build(dims[0], dims[1]); !errors.Is(err, ErrInvalidDimension) {
			t.Errorf("Build(%d,%d) error = %v, want ErrInvalidDimension", dims[0], dims[1], err)
		}
	}
}

// Every index appears exactly once; even rows ascend, odd rows descend.
func TestBuild_SerpentineShape(t *testing.T) {
	for rows := 1; rows <= 9; rows++ {
		for cols := 1; cols <= 9; cols++ {
			g, _ := Build(rows, cols)
			m := g.Matrix()
			seen := make(map[int]bool)
			for r := range m {
				for c := range m[r] {
					v := m[r][c]
					if v < 1 || v > rows*cols || seen[v] {
						t.Fatalf("%dx%d: bad or repeated index %d", rows, cols, v)
					}
					seen[v] = true
					if c == 0 {
						continue
					}
					if r%2 == 0 && m[r][c] <= m[r][c-1] {
						t.Fatalf("%dx%d: row %d not increasing: %v", rows, cols, r, m[r])
					}
					if r%2 == 1 && m[r][c] >= m[r][c-1] {
						t.Fatalf("%dx%d: row %d not decreasing: %v", rows, cols, r, m[r])
					}
				}
			}
			if len(seen) != rows*cols {
				t.Fatalf("%dx%d: %d distinct indices, want %d", rows, cols, len(seen), rows*cols)
			}
		}
	}
}

func TestIndexToCell_RoundTrip(t *testing.T) {
	for rows := 1; rows <= 7; rows++ {
		for cols := 1; cols <= 7; cols++ {
			g, _ := Build(rows, cols)
			for k := 1; k <= g.Size(); k++ {
				cell, err := g.IndexToCell(k)
				if err != nil {
					t.Fatalf("%dx%d IndexToCell(%d): %v", rows, cols, k, err)
				}
				if m := g.Matrix(); m[cell.Row][cell.Col] != k {
					t.Fatalf("%dx%d IndexToCell(%d) = %v holding %d", rows, cols, k, cell, m[cell.Row][cell.Col])
				}
				back, err := g.CellToIndex(cell)
				if err != nil || back != k {
					t.Fatalf("%dx%d CellToIndex(%v) = %d, %v; want %d", rows, cols, cell, back, err, k)
				}
			}
		}
	}
}

func TestIndexToCell_OutOfRange(t *testing.T) {
	g, _ := Build(3, 3)
	for _, k := range []int{0, -1, 10} {
		if _, err := g.IndexToCell(k); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("IndexToCell(%d) error = %v, want ErrOutOfRange", k, err)
		}
	}
	for _, c := range []Cell{{-1, 0}, {0, 3}, {3, 0}} {
		if _, err := g.CellToIndex(c); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("CellToIndex(%v) error = %v, want ErrOutOfRange", c, err)
		}
	}
}

func TestIndexToCell_Examples(t *testing.T) {
	g, _ := Build(3, 3)
	cases := map[int]Cell{1: {0, 0}, 3: {0, 2}, 4: {1, 2}, 5: {1, 1}, 6: {1, 0}, 9: {2, 2}}
	for k, want := range cases {
		if got, _ := g.IndexToCell(k); got != want {
			t.Errorf("IndexToCell(%d) = %v, want %v", k, got, want)
		}
	}
}

func TestMatrix_ReturnsCopy(t *testing.T) {
	g, _ := Build(2, 2)
	m := g.Matrix()
	m[0][0] = 99
	if idx, _ := g.CellToIndex(Cell{0, 0}); idx != 1 {
		t.Errorf("grid mutated through Matrix copy: got %d", idx)
	}
}
