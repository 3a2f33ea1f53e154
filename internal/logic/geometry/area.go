package geometry

import (
	"fmt"
	"math"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
)

// PointsFor returns the number of grid points needed to cover distance with
// the given spacing, endpoints included. The quotient is rounded to three
// decimals before taking the ceiling so 2.0000001 steps does not become 4 points.
func PointsFor(distance, spacing float64) (int, error) {
	if !(distance > 0) || !(spacing > 0) {
		return 0, fmt.Errorf("%w: distance %v, spacing %v", ErrInvalidDimension, distance, spacing)
	}
	q := math.Round(distance/spacing*1000) / 1000
	return int(math.Ceil(q)) + 1, nil
}

// AreaPlan describes how an area scan maps onto motor steps.
type AreaPlan struct {
	Rows int // points along axis 2 (height)
	Cols int // points along axis 1 (width)

	StepsPerCell int     // whole steps per grid move
	Fraction     float64 // leftover fraction per grid move

	// Reverse steps from the centre of the area to cell (0,0).
	StartAxis1 int
	StartAxis2 int
}

// PlanArea computes the grid and step plan for a width x height area scanned
// with gridStep spacing on a positioner moving unit per step (same length unit).
func PlanArea(width, height, gridStep, unit float64) (*AreaPlan, error) {
	cols, err := PointsFor(width, gridStep)
	if err != nil {
		return nil, fmt.Errorf("width: %w", err)
	}
	rows, err := PointsFor(height, gridStep)
	if err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}
	return PlanGrid(rows, cols, gridStep, unit)
}

// PlanGrid is PlanArea for a grid whose point counts are already known.
func PlanGrid(rows, cols int, gridStep, unit float64) (*AreaPlan, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d grid", ErrInvalidDimension, rows, cols)
	}
	whole, frac, err := StepsFor(gridStep, unit)
	if err != nil {
		return nil, err
	}
	nominal := float64(whole) + frac
	p := &AreaPlan{
		Rows:         rows,
		Cols:         cols,
		StepsPerCell: whole,
		Fraction:     frac,
		StartAxis1:   int(nominal * float64(cols) / 2),
		StartAxis2:   int(nominal * float64(rows) / 2),
	}
	debug.PrintStruct("AreaPlan", *p)
	return p, nil
}
