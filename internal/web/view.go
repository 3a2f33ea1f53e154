package web

import (
	"math"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/motion"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// CellView is a 1-based grid position.
type CellView struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// MaxView is a maximum with its 1-based cell.
type MaxView struct {
	Index int      `json:"index"`
	Cell  CellView `json:"cell"`
	Value float64  `json:"value"`
	Name  string   `json:"name,omitempty"`
}

// ZoomView is the last zoom scan.
type ZoomView struct {
	TargetIndex int          `json:"target_index"`
	Target      CellView     `json:"target"`
	Grid        [][]int      `json:"grid"`
	Values      [][]*float64 `json:"values"`
	Complete    bool         `json:"complete"`
	Max         *MaxView     `json:"max,omitempty"`
}

// ResultsView is the JSON form of a session snapshot. Unmeasured values are null.
type ResultsView struct {
	ID        string        `json:"id"`
	State     scan.State    `json:"state"`
	Operation string        `json:"operation,omitempty"`
	Params    scan.Params   `json:"params"`
	Grid      [][]int       `json:"grid"`
	Values    [][]*float64  `json:"values"`
	Measured  int           `json:"measured"`
	Position  *CellView     `json:"position"` // null when off the grid
	Lost      bool          `json:"lost"`
	Offset    motion.Offset `json:"offset"`
	Max       *MaxView      `json:"max,omitempty"`
	Zoom      *ZoomView     `json:"zoom,omitempty"`
	Error     string        `json:"error,omitempty"`
	Started   *time.Time    `json:"started,omitempty"`
	Finished  *time.Time    `json:"finished,omitempty"`
}

func nullable(values [][]float64) [][]*float64 {
	out := make([][]*float64, len(values))
	for i, row := range values {
		out[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				v := v
				out[i][j] = &v
			}
		}
	}
	return out
}

func maxView(m *scan.Max) *MaxView {
	if m == nil {
		return nil
	}
	return &MaxView{
		Index: m.Index,
		Cell:  CellView{Row: m.Cell.Row + 1, Col: m.Cell.Col + 1},
		Value: m.Value,
		Name:  m.Name,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// NewResultsView converts a snapshot for the page.
func NewResultsView(s scan.Snapshot) ResultsView {
	v := ResultsView{
		ID:        s.ID.String(),
		State:     s.State,
		Operation: s.Operation,
		Params:    s.Params,
		Grid:      s.Grid,
		Values:    nullable(s.Values),
		Measured:  s.Measured,
		Lost:      s.Lost,
		Offset:    s.Offset,
		Max:       maxView(s.Max),
		Started:   timePtr(s.Started),
		Finished:  timePtr(s.Finished),
	}
	if s.PositionKnown {
		v.Position = &CellView{Row: s.Position.Row + 1, Col: s.Position.Col + 1}
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	if z := s.Zoom; z != nil {
		v.Zoom = &ZoomView{
			TargetIndex: z.TargetIndex,
			Target:      CellView{Row: z.Target.Row + 1, Col: z.Target.Col + 1},
			Grid:        z.Grid,
			Values:      nullable(z.Values),
			Complete:    z.Complete,
			Max:         maxView(z.Max),
		}
	}
	return v
}
