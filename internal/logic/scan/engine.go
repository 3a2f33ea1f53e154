package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/motion"
)

// pendingMove is a move computed but not yet acknowledged. A failed move
// stays queued and is re-issued unchanged on Resume, so the accumulators
// are only advanced once per grid move.
type pendingMove struct {
	axis  actuator.Axis
	steps int // signed
	to    int // index reached once the queue drains, 0 while positioning
}

// traversal is the resumable state of an area scan.
type traversal struct {
	grid     *geometry.Grid
	axis1    *geometry.Stride
	axis2    *geometry.Stride
	start    int           // first index to measure
	cur      int           // index the probe is at, 0 before reaching (0,0)
	measured bool          // cur has been measured (or skipped)
	at       motion.Offset // ledger position after the last acknowledged move
	queue    []pendingMove
	quiet    bool
	dwell    time.Duration
}

// nextMove returns the move from one cell to the next along the serpentine.
// Row changes take priority and always go forward on axis 2; the column
// direction on axis 1 follows the row parity.
func nextMove(from, to geometry.Cell, axis1, axis2 *geometry.Stride) (actuator.Axis, int) {
	switch {
	case to.Row > from.Row:
		return actuator.Axis2, axis2.Next()
	case to.Col > from.Col:
		return actuator.Axis1, axis1.Next()
	case to.Col < from.Col:
		return actuator.Axis1, -axis1.Next()
	}
	return 0, 0
}

// Run performs an area scan: it moves from the centre of the area to cell
// (0,0), then visits every cell along the serpentine and measures it.
//
// On a failed move or measurement the scan halts with the results so far and
// can be continued with Resume. Cancelling ctx stops the scan between points.
func (s *Session) Run(ctx context.Context, p Params) error {
	release, err := s.acquire("scan")
	if err != nil {
		return err
	}
	defer release()

	s.mu.RLock()
	lost := s.lost
	s.mu.RUnlock()
	if lost {
		return fmt.Errorf("scan: %w", ErrPositionLost)
	}

	plan, err := p.Plan()
	if err != nil {
		return newError(KindConfiguration, "scan", 0, err)
	}
	grid, err := geometry.Build(plan.Rows, plan.Cols)
	if err != nil {
		return newError(KindConfiguration, "scan", 0, err)
	}
	a1, err := geometry.NewStride(p.GridStep, p.StepUnit)
	if err != nil {
		return newError(KindConfiguration, "scan", 0, err)
	}
	a2, _ := geometry.NewStride(p.GridStep, p.StepUnit)

	if err := s.motion.Ping(); err != nil {
		return newError(KindTransport, "scan", 0, err)
	}

	// Back to the centre if a previous operation left the probe elsewhere.
	if off := s.motion.Offset(); off != (motion.Offset{}) {
		debug.Live("Returning to centre from %+v", off)
		if err := s.motion.ReturnTo(motion.Offset{}); err != nil {
			s.markLost()
			return moveError("scan", 0, err)
		}
	}

	debug.Summary("Area scan")
	debug.Grid(plan.Rows, plan.Cols)
	debug.Value("steps per point", fmt.Sprintf("%d + %.6f", plan.StepsPerCell, plan.Fraction))

	t := &traversal{
		grid:  grid,
		axis1: a1,
		axis2: a2,
		start: p.startIndex(),
		quiet: p.QuietMeasure,
		dwell: p.Dwell,
		at:    s.motion.Offset(),
		queue: []pendingMove{
			{axis: actuator.Axis2, steps: -plan.StartAxis2},
			{axis: actuator.Axis1, steps: -plan.StartAxis1},
		},
	}

	s.mu.Lock()
	s.id = uuid.New()
	s.params = p
	s.plan = plan
	s.grid = grid
	s.results = NewResults(plan.Rows, plan.Cols)
	s.zoom = nil
	s.max = nil
	s.trav = t
	s.atCell = false
	s.started = time.Now()
	s.finished = time.Time{}
	s.mu.Unlock()

	pc := p
	s.emit(Event{Type: EventStarted, Params: &pc, Rows: plan.Rows, Cols: plan.Cols})
	s.setState(StatePositioning, nil)
	return s.traverse(ctx, t)
}

// Resume continues a failed or interrupted area scan from the last known
// position, re-issuing the move that failed if there was one. If a correction,
// zoom, manual move or home moved the probe since, it first goes back to where
// the scan stopped.
func (s *Session) Resume(ctx context.Context) error {
	release, err := s.acquire("resume")
	if err != nil {
		return err
	}
	defer release()

	s.mu.RLock()
	t, st, lost := s.trav, s.state, s.lost
	s.mu.RUnlock()
	switch {
	case st == StateIdle:
		return ErrNoScan
	case t == nil || !st.Resumable():
		return fmt.Errorf("resume: scan is %s", st)
	case lost:
		return fmt.Errorf("resume: %w", ErrPositionLost)
	}

	if err := s.rejoin(t); err != nil {
		s.setState(StateFailed, err)
		return err
	}

	debug.Info("Resuming scan at point %d", t.cur)
	if t.cur == 0 {
		s.setState(StatePositioning, nil)
	} else {
		s.setState(StateMeasuring, nil)
	}
	return s.traverse(ctx, t)
}

// rejoin moves the probe back to the ledger position the traversal stopped at.
func (s *Session) rejoin(t *traversal) error {
	if s.motion.Offset() == t.at {
		return nil
	}
	debug.Live("Returning to point %d at %+v", t.cur, t.at)
	if err := s.moveTo("resume", t.cur, t.at); err != nil {
		return err
	}
	if t.cur > 0 {
		c, _ := t.grid.IndexToCell(t.cur)
		s.setPosition(c)
	}
	return nil
}

func (s *Session) traverse(ctx context.Context, t *traversal) error {
	last := t.grid.Size()
	for {
		if err := s.drain(t); err != nil {
			s.setState(StateFailed, err)
			return err
		}

		if !t.measured {
			if t.cur < t.start {
				debug.Verbose("Point %d skipped (before start index %d)", t.cur, t.start)
			} else if err := s.measureArea(ctx, t); err != nil {
				if IsKind(err, KindInterrupted) {
					s.setState(StateInterrupted, err)
				} else {
					s.setState(StateFailed, err)
				}
				return err
			}
			t.measured = true
		}

		if t.cur == last {
			s.mu.Lock()
			s.trav = nil
			s.mu.Unlock()
			s.setState(StateComplete, nil)
			return nil
		}

		if err := ctx.Err(); err != nil {
			e := newError(KindInterrupted, "scan", t.cur+1, err)
			s.setState(StateInterrupted, e)
			return e
		}

		from, _ := t.grid.IndexToCell(t.cur)
		to, _ := t.grid.IndexToCell(t.cur + 1)
		axis, steps := nextMove(from, to, t.axis1, t.axis2)
		debug.Verbose("Point %d -> %d: %s %+d (carry %.4f / %.4f)",
			t.cur, t.cur+1, axis, steps, t.axis1.Remainder(), t.axis2.Remainder())
		t.queue = append(t.queue, pendingMove{axis: axis, steps: steps, to: t.cur + 1})
	}
}

// drain issues queued moves in order. A move leaves the queue only once
// acknowledged; the position advances when the last move of a step lands.
func (s *Session) drain(t *traversal) error {
	for len(t.queue) > 0 {
		m := t.queue[0]
		if err := s.motion.Move(m.axis, m.steps); err != nil {
			return moveError("scan", m.to, err)
		}
		t.queue = t.queue[1:]
		t.at = s.motion.Offset()

		if len(t.queue) > 0 {
			continue
		}
		if m.to == 0 {
			// Reached (0,0) from the centre.
			t.cur = 1
			s.setState(StateMeasuring, nil)
		} else {
			t.cur = m.to
		}
		t.measured = false
		c, _ := t.grid.IndexToCell(t.cur)
		s.setPosition(c)
	}
	return nil
}

func (s *Session) measureArea(ctx context.Context, t *traversal) error {
	c, _ := t.grid.IndexToCell(t.cur)
	v, err := s.measure(ctx, "scan", t.dwell, t.cur, t.quiet)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.results.Set(c, v)
	s.mu.Unlock()
	s.updateMax(t.cur, c, v)
	debug.Measure(t.cur, c.Row, c.Col, v)
	s.emit(Event{Type: EventMeasured, Kind: KindArea, Index: t.cur, Cell: c, Value: v})
	return nil
}

// Cancelled reports whether err ended an operation because its context was cancelled.
func Cancelled(err error) bool {
	return IsKind(err, KindInterrupted) || errors.Is(err, context.Canceled)
}
