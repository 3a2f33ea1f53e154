package scan

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/meter"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/motion"
)

// State of the area scan held by a session.
type State int

const (
	StateIdle State = iota
	StatePositioning
	StateMeasuring
	StateComplete
	StateFailed
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePositioning:
		return "positioning"
	case StateMeasuring:
		return "measuring"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateInterrupted:
		return "interrupted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets State appear by name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resumable reports whether Resume can continue from s.
func (s State) Resumable() bool {
	return s == StateFailed || s == StateInterrupted
}

// MeasurementKind tells which operation produced a value.
type MeasurementKind string

const (
	KindArea       MeasurementKind = "area"
	KindZoom       MeasurementKind = "zoom"
	KindCorrection MeasurementKind = "correction"
)

// EventType distinguishes observer events.
type EventType int

const (
	EventStarted EventType = iota + 1
	EventMeasured
	EventState
)

// Event is delivered to observers from the goroutine running the operation.
type Event struct {
	Type      EventType
	SessionID uuid.UUID
	Time      time.Time

	// EventStarted
	Params *Params
	Rows   int
	Cols   int

	// EventMeasured
	Kind  MeasurementKind
	Index int
	Cell  geometry.Cell
	Value float64

	// EventState
	State State
	Err   error
}

// Observer receives scan events. Observe must not call back into the session.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Max is the running maximum of an area scan.
type Max struct {
	Index int           `json:"index"`
	Cell  geometry.Cell `json:"cell"`
	Value float64       `json:"value"`
	Name  string        `json:"name"` // point name from the tag
}

// Session owns one positioner and one meter for the lifetime of the program.
// Only one operation runs at a time; a concurrent call fails with ErrBusy.
//
// The ledger origin of the motion controller (where the session started or
// was last homed) is the centre of every area scan.
type Session struct {
	busy sync.Mutex

	motion    *motion.Controller
	meter     meter.Meter
	observers []Observer

	mu       sync.RWMutex
	id       uuid.UUID
	params   Params
	plan     *geometry.AreaPlan
	grid     *geometry.Grid
	results  *Results
	zoom     *ZoomResult
	state    State
	op       string
	pos      geometry.Cell
	atCell   bool // pos is valid
	lost     bool // physical position unknown
	trav     *traversal
	max      *Max
	lastErr  error
	started  time.Time
	finished time.Time
	jog      map[jogKey]*geometry.Stride
}

// NewSession returns an idle session. The probe is assumed to sit at the
// centre of the area to scan.
func NewSession(ctrl *motion.Controller, m meter.Meter, observers ...Observer) *Session {
	return &Session{
		motion:    ctrl,
		meter:     m,
		observers: observers,
		jog:       make(map[jogKey]*geometry.Stride),
	}
}

// AddObserver registers o for future events. Not safe during an operation.
func (s *Session) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Session) emit(e Event) {
	e.Time = time.Now()
	s.mu.RLock()
	e.SessionID = s.id
	s.mu.RUnlock()
	for _, o := range s.observers {
		o.Observe(e)
	}
}

// acquire takes exclusive use of the positioner.
func (s *Session) acquire(op string) (release func(), err error) {
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	s.mu.Lock()
	s.op = op
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.op = ""
		s.mu.Unlock()
		s.busy.Unlock()
	}, nil
}

func (s *Session) setState(st State, err error) {
	s.mu.Lock()
	s.state = st
	s.lastErr = err
	if st == StateComplete || st == StateFailed || st == StateInterrupted {
		s.finished = time.Now()
	}
	s.mu.Unlock()
	debug.Info("Scan state: %s", st)
	s.emit(Event{Type: EventState, State: st, Err: err})
}

func (s *Session) setPosition(c geometry.Cell) {
	s.mu.Lock()
	s.pos = c
	s.atCell = true
	s.mu.Unlock()
}

func (s *Session) markLost() {
	s.mu.Lock()
	s.lost = true
	s.atCell = false
	s.mu.Unlock()
	debug.Info("Probe position lost; home the positioner before continuing")
}

// measure reads the meter at the current position with the drivers optionally released.
// A driver that cannot be re-engaged fails the measurement as a transport error.
func (s *Session) measure(ctx context.Context, op string, dwell time.Duration, index int, quiet bool) (v float64, err error) {
	if quiet {
		if derr := s.motion.DisableMotors(); derr != nil {
			debug.Error(fmt.Errorf("release drivers: %w", derr))
		}
		defer func() {
			eerr := s.motion.EnableMotors()
			switch {
			case eerr == nil:
			case err == nil:
				v, err = 0, newError(KindTransport, op, index, fmt.Errorf("re-enable drivers: %w", eerr))
			default:
				debug.Error(fmt.Errorf("re-enable drivers: %w", eerr))
			}
		}()
	}
	s.mu.RLock()
	tag := s.params.Tag
	s.mu.RUnlock()

	v, err = s.meter.Measure(ctx, meter.Request{Dwell: dwell, Tag: tag, Index: index})
	switch {
	case err != nil && ctx.Err() != nil:
		return 0, newError(KindInterrupted, op, index, ctx.Err())
	case err != nil:
		return 0, newError(KindMeasurement, op, index, err)
	case math.IsNaN(v):
		return 0, newError(KindMeasurement, op, index, fmt.Errorf("meter returned NaN"))
	}
	return v, nil
}

// relocate moves from the current cell to target using truncated grid spans,
// axis 2 first. If the move fails after part of it was acknowledged the
// position is marked lost.
func (s *Session) relocate(op string, target geometry.Cell) error {
	s.mu.RLock()
	from, plan := s.pos, s.plan
	s.mu.RUnlock()

	nominal := float64(plan.StepsPerCell) + plan.Fraction
	d := motion.Offset{
		Axis1: int(nominal * float64(target.Col-from.Col)),
		Axis2: int(nominal * float64(target.Row-from.Row)),
	}
	debug.Verbose("Relocate %v -> %v: %+v steps", from, target, d)

	if err := s.moveTo(op, 0, s.motion.Offset().Add(d)); err != nil {
		return err
	}
	s.setPosition(target)
	return nil
}

// moveTo moves to a ledger position, axis 2 first. A move that was not
// acknowledged leaves the probe where it was; if part of the way was already
// acknowledged the position is marked lost.
func (s *Session) moveTo(op string, index int, mark motion.Offset) error {
	before := s.motion.Offset()
	if err := s.motion.ReturnTo(mark); err != nil {
		if s.motion.Offset() != before {
			s.markLost()
			return moveError(op, index, fmt.Errorf("%w: %w", ErrPositionLost, err))
		}
		return moveError(op, index, err)
	}
	return nil
}

// ready checks the preconditions shared by zoom and correction.
func (s *Session) ready(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.results == nil {
		return ErrNoScan
	}
	if s.lost || !s.atCell {
		return fmt.Errorf("%s: %w", op, ErrPositionLost)
	}
	return nil
}

func (s *Session) updateMax(index int, c geometry.Cell, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max == nil || v > s.max.Value {
		s.max = &Max{Index: index, Cell: c, Value: v, Name: s.params.Tag.Filename(index)}
	}
}

// recomputeMax rescans the results after a value was overwritten.
func (s *Session) recomputeMax() {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, v, ok := s.results.Max()
	if !ok {
		s.max = nil
		return
	}
	idx, _ := s.grid.CellToIndex(c)
	s.max = &Max{Index: idx, Cell: c, Value: v, Name: s.params.Tag.Filename(idx)}
}

// Snapshot is a copy of the session state, safe to read at any time.
type Snapshot struct {
	ID            uuid.UUID
	State         State
	Operation     string // running operation, empty when idle
	Params        Params
	Grid          [][]int
	Values        [][]float64 // NaN = unmeasured
	Measured      int
	Position      geometry.Cell
	PositionKnown bool
	Lost          bool
	Offset        motion.Offset
	Max           *Max
	Zoom          *ZoomSnapshot
	Err           error
	Started       time.Time
	Finished      time.Time
}

// ZoomSnapshot is the copied state of the last zoom scan.
type ZoomSnapshot struct {
	Target      geometry.Cell
	TargetIndex int
	Grid        [][]int
	Values      [][]float64
	Complete    bool
	Max         *Max
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:            s.id,
		State:         s.state,
		Operation:     s.op,
		Params:        s.params,
		Position:      s.pos,
		PositionKnown: s.atCell,
		Lost:          s.lost,
		Offset:        s.motion.Offset(),
		Err:           s.lastErr,
		Started:       s.started,
		Finished:      s.finished,
	}
	if s.grid != nil {
		snap.Grid = s.grid.Matrix()
	}
	if s.results != nil {
		snap.Values = s.results.Matrix()
		snap.Measured = s.results.Count()
	}
	if s.max != nil {
		m := *s.max
		snap.Max = &m
	}
	if z := s.zoom; z != nil {
		zs := &ZoomSnapshot{
			Target:      z.Target,
			TargetIndex: z.TargetIndex,
			Grid:        z.Grid.Matrix(),
			Values:      z.Results.Matrix(),
			Complete:    z.Complete,
		}
		if c, v, ok := z.Results.Max(); ok {
			idx, _ := z.Grid.CellToIndex(c)
			zs.Max = &Max{Index: idx, Cell: c, Value: v, Name: s.params.Tag.Filename(idx)}
		}
		snap.Zoom = zs
	}
	return snap
}

// ID returns the identifier of the current area scan (zero before the first).
func (s *Session) ID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}
