package geometry

import (
	"fmt"
	"math"
)

// snap is how close to an integer a quotient must be to count as one.
const snap = 1e-9

// StepsFor splits distance/unit into whole motor steps and the leftover
// fraction of a step, in [0,1).
func StepsFor(distance, unit float64) (whole int, frac float64, err error) {
	if !(distance > 0) || !(unit > 0) {
		return 0, 0, fmt.Errorf("%w: distance %v, step unit %v", ErrInvalidDimension, distance, unit)
	}
	q := distance / unit
	if r := math.Round(q); math.Abs(q-r) < snap {
		q = r
	}
	w, f := math.Modf(q)
	return int(w), f, nil
}

// Accumulator carries the fractional steps lost by truncation so the
// cumulative error of repeated moves stays below one step.
// The zero value is ready to use. Keep one per axis for a whole traversal.
type Accumulator struct {
	rem float64
}

// Add adds frac to the carried remainder and returns the whole steps to
// add to the current move. The remainder stays in [0,1).
func (a *Accumulator) Add(frac float64) int {
	a.rem += frac
	extra := int(a.rem)
	a.rem -= float64(extra)
	return extra
}

// Remainder returns the carried fraction of a step.
func (a *Accumulator) Remainder() float64 {
	return a.rem
}

// Stride is the step count of one grid move on one axis, with its own
// accumulator.
type Stride struct {
	Whole    int
	Fraction float64
	acc      Accumulator
}

// NewStride converts a grid step distance to a Stride.
func NewStride(distance, unit float64) (*Stride, error) {
	w, f, err := StepsFor(distance, unit)
	if err != nil {
		return nil, err
	}
	return &Stride{Whole: w, Fraction: f}, nil
}

// Next returns the step count for the next grid move.
func (s *Stride) Next() int {
	return s.Whole + s.acc.Add(s.Fraction)
}

// Nominal is the exact, unrounded step count of one grid move.
func (s *Stride) Nominal() float64 {
	return float64(s.Whole) + s.Fraction
}

// Span returns the truncated step count for n grid moves taken in one go.
// Sign follows n. The accumulator is not touched.
func (s *Stride) Span(n int) int {
	return int(s.Nominal() * float64(n))
}

// Remainder exposes the accumulator state.
func (s *Stride) Remainder() float64 {
	return s.acc.Remainder()
}
