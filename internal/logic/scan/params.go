package scan

import (
	"fmt"
	"math"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/meter"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
)

// ZoomSize is the side of the zoom sub-grid, and ZoomDivisor the ratio of
// the area grid step to the zoom grid step.
const (
	ZoomSize    = 5
	ZoomDivisor = 4
)

// Params configures one area scan. Distances share one length unit
// (centimetres in the shipped config). A Params is not modified during a scan.
type Params struct {
	Width    float64 `yaml:"width" json:"width"`         // along axis 1
	Height   float64 `yaml:"height" json:"height"`       // along axis 2
	GridStep float64 `yaml:"grid_step" json:"grid_step"` // spacing between points
	StepUnit float64 `yaml:"step_unit" json:"step_unit"` // travel per motor step

	// Rows and Cols, when both set, override the counts derived from the area.
	Rows int `yaml:"rows,omitempty" json:"rows,omitempty"`
	Cols int `yaml:"cols,omitempty" json:"cols,omitempty"`

	Dwell     time.Duration `yaml:"dwell" json:"dwell"`
	ZoomDwell time.Duration `yaml:"zoom_dwell" json:"zoom_dwell"`

	Tag meter.Tag `yaml:"tag" json:"tag"`

	// StartIndex skips measuring points before it; 0 and 1 both mean the first point.
	StartIndex int `yaml:"start_index,omitempty" json:"start_index,omitempty"`
	// QuietMeasure releases the motor drivers while the meter reads.
	QuietMeasure bool   `yaml:"quiet_measure" json:"quiet_measure"`
	Comment      string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}

// Validate rejects parameters that cannot describe a scan.
func (p Params) Validate() error {
	if !positive(p.GridStep) {
		return fmt.Errorf("grid step must be positive, got %v", p.GridStep)
	}
	if !positive(p.StepUnit) {
		return fmt.Errorf("step unit must be positive, got %v", p.StepUnit)
	}
	if p.Rows > 0 || p.Cols > 0 {
		if p.Rows < 1 || p.Cols < 1 {
			return fmt.Errorf("rows and cols must both be positive, got %dx%d", p.Rows, p.Cols)
		}
	} else {
		if !positive(p.Width) {
			return fmt.Errorf("width must be positive, got %v", p.Width)
		}
		if !positive(p.Height) {
			return fmt.Errorf("height must be positive, got %v", p.Height)
		}
	}
	if p.Dwell < 0 || p.ZoomDwell < 0 {
		return fmt.Errorf("dwell times must not be negative")
	}
	if p.StartIndex < 0 {
		return fmt.Errorf("start index must not be negative, got %d", p.StartIndex)
	}
	return nil
}

// Plan derives the grid and step plan.
func (p Params) Plan() (*geometry.AreaPlan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var plan *geometry.AreaPlan
	var err error
	if p.Rows > 0 {
		plan, err = geometry.PlanGrid(p.Rows, p.Cols, p.GridStep, p.StepUnit)
	} else {
		plan, err = geometry.PlanArea(p.Width, p.Height, p.GridStep, p.StepUnit)
	}
	if err != nil {
		return nil, err
	}
	if p.StartIndex > plan.Rows*plan.Cols {
		return nil, fmt.Errorf("start index %d beyond last point %d", p.StartIndex, plan.Rows*plan.Cols)
	}
	return plan, nil
}

func (p Params) startIndex() int {
	if p.StartIndex < 1 {
		return 1
	}
	return p.StartIndex
}
