package geometry

import (
	"errors"
	"testing"
)

func TestPointsFor(t *testing.T) {
	cases := []struct {
		name     string
		distance float64
		spacing  float64
		want     int
	}{
		{"exact", 4.0, 2.0, 3},
		{"partial step rounds up", 5.0, 2.0, 4},
		{"float noise ignored", 0.6, 0.2, 4},
		{"spacing larger than area", 1.0, 2.8, 2},
		{"phone sized", 6.0, 2.8, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PointsFor(tc.distance, tc.spacing)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("PointsFor(%v, %v) = %d, want %d", tc.distance, tc.spacing, got, tc.want)
			}
		})
	}
}

func TestPointsFor_Invalid(t *testing.T) {
	if _, err := PointsFor(0, 1); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("zero distance: err = %v", err)
	}
	if _, err := PointsFor(1, -1); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("negative spacing: err = %v", err)
	}
}

func TestPlanArea(t *testing.T) {
	// 5.6 x 2.8 cm at 2.8 cm spacing: 3 columns, 2 rows.
	p, err := PlanArea(5.6, 2.8, 2.8, 0.00508)
	if err != nil {
		t.Fatal(err)
	}
	if p.Cols != 3 || p.Rows != 2 {
		t.Errorf("grid = %dx%d, want 2x3", p.Rows, p.Cols)
	}
	if p.StepsPerCell != 551 {
		t.Errorf("StepsPerCell = %d, want 551", p.StepsPerCell)
	}
	// 551.1811 * 3 / 2 = 826.77; 551.1811 * 2 / 2 = 551.18
	if p.StartAxis1 != 826 {
		t.Errorf("StartAxis1 = %d, want 826", p.StartAxis1)
	}
	if p.StartAxis2 != 551 {
		t.Errorf("StartAxis2 = %d, want 551", p.StartAxis2)
	}
}

func TestPlanArea_Invalid(t *testing.T) {
	cases := [][4]float64{
		{0, 1, 1, 0.1},
		{1, 0, 1, 0.1},
		{1, 1, 0, 0.1},
		{1, 1, 1, 0},
	}
	for _, c := range cases {
		if _, err := PlanArea(c[0], c[1], c[2], c[3]); !errors.Is(err, ErrInvalidDimension) {
			t.Errorf("PlanArea(%v) error = %v, want ErrInvalidDimension", c, err)
		}
	}
}
