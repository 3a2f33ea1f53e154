package meter

import (
	"context"
	"math"

	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
)

// Positioner reports the absolute step position of an axis.
type Positioner interface {
	Position(axis actuator.Axis) int
}

// Simulated reads a synthetic field with a single Gaussian hot spot at the
// current position of a simulated stage.
type Simulated struct {
	Stage     Positioner
	PeakAxis1 int     // hot spot position, steps from home
	PeakAxis2 int     //
	Sigma     float64 // spot radius, steps
	Amplitude float64
	Floor     float64 // background level
}

func (s *Simulated) Measure(ctx context.Context, req Request) (float64, error) {
	if err := Dwell(ctx, req.Dwell); err != nil {
		return 0, err
	}
	return s.At(s.Stage.Position(actuator.Axis1), s.Stage.Position(actuator.Axis2)), nil
}

// At evaluates the field at an absolute position.
func (s *Simulated) At(axis1, axis2 int) float64 {
	sigma := s.Sigma
	if sigma <= 0 {
		sigma = 1
	}
	dx := float64(axis1 - s.PeakAxis1)
	dy := float64(axis2 - s.PeakAxis2)
	return s.Floor + s.Amplitude*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
}
