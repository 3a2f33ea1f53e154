package scan

import (
	"context"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
)

// Correct moves to the area cell at index, measures it once with the area
// dwell and overwrites its value. The offset is derived from the tracked
// position, so repeating a correction issues no further steps.
func (s *Session) Correct(ctx context.Context, index int) (float64, error) {
	release, err := s.acquire("correct")
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.ready("correct"); err != nil {
		return 0, err
	}

	s.mu.RLock()
	grid, p := s.grid, s.params
	s.mu.RUnlock()

	target, err := grid.IndexToCell(index)
	if err != nil {
		return 0, newError(KindInvalidTarget, "correct", index, err)
	}

	debug.Section("Correcting point")
	if err := s.relocate("correct", target); err != nil {
		return 0, err
	}

	v, err := s.measure(ctx, "correct", p.Dwell, index, p.QuietMeasure)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.results.Set(target, v)
	s.mu.Unlock()
	s.recomputeMax()
	debug.Measure(index, target.Row, target.Col, v)
	s.emit(Event{Type: EventMeasured, Kind: KindCorrection, Index: index, Cell: target, Value: v})
	return v, nil
}
