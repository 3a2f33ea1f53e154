package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/motion"
)

// ZoomResult is a fine scan around one cell of the area scan.
type ZoomResult struct {
	Target      geometry.Cell
	TargetIndex int
	Grid        *geometry.Grid
	Results     *Results
	Complete    bool // all sub-grid points measured
}

// Zoom moves to the area cell at index (0 selects the maximum), scans a
// ZoomSize x ZoomSize sub-grid centred on it at a quarter of the grid step,
// and returns to the target cell.
//
// The way back is the negation of the steps acknowledged since reaching the
// target, so it holds for a partial sub-scan too. Whatever stopped the
// sub-scan, the probe returns to the target before the error is reported. If
// the way back fails part way the position is lost until Home.
func (s *Session) Zoom(ctx context.Context, index int) (*ZoomResult, error) {
	release, err := s.acquire("zoom")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ready("zoom"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	grid, results, p := s.grid, s.results, s.params
	s.mu.RUnlock()

	var target geometry.Cell
	if index == 0 {
		c, _, ok := results.Max()
		if !ok {
			return nil, newError(KindInvalidTarget, "zoom", 0, errors.New("no measured point to zoom on"))
		}
		target = c
		index, _ = grid.CellToIndex(c)
	} else {
		c, err := grid.IndexToCell(index)
		if err != nil {
			return nil, newError(KindInvalidTarget, "zoom", index, err)
		}
		target = c
	}

	a1, err := geometry.NewStride(p.GridStep/ZoomDivisor, p.StepUnit)
	if err != nil {
		return nil, newError(KindConfiguration, "zoom", index, err)
	}
	a2, _ := geometry.NewStride(p.GridStep/ZoomDivisor, p.StepUnit)
	sub, _ := geometry.Build(ZoomSize, ZoomSize)

	debug.Summary(fmt.Sprintf("Zoom scan on point %d %v", index, target))
	if err := s.relocate("zoom", target); err != nil {
		return nil, err
	}

	zr := &ZoomResult{
		Target:      target,
		TargetIndex: index,
		Grid:        sub,
		Results:     NewResults(ZoomSize, ZoomSize),
	}
	s.mu.Lock()
	s.zoom = zr
	s.mu.Unlock()

	mark := s.motion.Offset()
	scanErr := s.zoomScan(ctx, zr, a1, a2, p)
	if err := s.moveTo("zoom", index, mark); err != nil {
		if !errors.Is(err, ErrPositionLost) {
			s.mu.Lock()
			s.atCell = false
			s.mu.Unlock()
		}
		return zr, err
	}
	s.setPosition(target)
	debug.Info("Zoom done, back on point %d (%d/%d measured)", index, zr.Results.Count(), sub.Size())
	return zr, scanErr
}

// zoomScan walks the sub-grid from its corner, half a sub-grid before the
// target on both axes. Move failures come back as transport or timeout kinds.
func (s *Session) zoomScan(ctx context.Context, zr *ZoomResult, a1, a2 *geometry.Stride, p Params) error {
	half := ZoomSize / 2
	if err := s.motion.MoveBy(motion.Offset{Axis1: a1.Span(-half), Axis2: a2.Span(-half)}); err != nil {
		return moveError("zoom", 1, err)
	}

	for k := 1; k <= zr.Grid.Size(); k++ {
		c, _ := zr.Grid.IndexToCell(k)
		if k > 1 {
			if err := ctx.Err(); err != nil {
				return newError(KindInterrupted, "zoom", k, err)
			}
			prev, _ := zr.Grid.IndexToCell(k - 1)
			axis, steps := nextMove(prev, c, a1, a2)
			if err := s.motion.Move(axis, steps); err != nil {
				return moveError("zoom", k, err)
			}
		}

		v, err := s.measure(ctx, "zoom", p.ZoomDwell, k, p.QuietMeasure)
		if err != nil {
			return err
		}
		s.mu.Lock()
		zr.Results.Set(c, v)
		s.mu.Unlock()
		debug.Measure(k, c.Row, c.Col, v)
		s.emit(Event{Type: EventMeasured, Kind: KindZoom, Index: k, Cell: c, Value: v})
	}
	zr.Complete = true
	return nil
}
