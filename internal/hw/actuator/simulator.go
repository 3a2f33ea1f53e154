package actuator

import (
	"sync"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
)

// Step records one acknowledged move on the simulator, signed.
type Step struct {
	Axis  Axis
	Steps int
}

// Simulator is an in-memory actuator that tracks the absolute step count of
// each axis relative to home. It is used for development without hardware and
// as a recording fake in tests.
type Simulator struct {
	mu      sync.Mutex
	pos     map[Axis]int
	history []Step
	calls   int
	failAt  map[int]error
	homes   int
	enabled bool

	// Latency is slept on every move, to mimic the controller's travel time.
	Latency time.Duration
}

// NewSimulator returns a simulator sitting at home.
func NewSimulator() *Simulator {
	return &Simulator{
		pos:     map[Axis]int{Axis1: 0, Axis2: 0},
		failAt:  make(map[int]error),
		enabled: true,
	}
}

// FailMove makes the n-th Forward/Reverse call (1-based, counted from creation)
// fail with err without moving.
func (s *Simulator) FailMove(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt[n] = err
}

func (s *Simulator) Forward(axis Axis, steps int) error {
	return s.move(axis, steps)
}

func (s *Simulator) Reverse(axis Axis, steps int) error {
	return s.move(axis, -steps)
}

func (s *Simulator) move(axis Axis, signed int) error {
	mag := signed
	if mag < 0 {
		mag = -mag
	}
	if err := CheckMove(axis, mag); err != nil {
		return err
	}

	s.mu.Lock()
	s.calls++
	if err, ok := s.failAt[s.calls]; ok {
		s.mu.Unlock()
		return err
	}
	s.pos[axis] += signed
	s.history = append(s.history, Step{Axis: axis, Steps: signed})
	latency := s.Latency
	s.mu.Unlock()

	debug.Trace("sim: %s %+d -> %d", axis, signed, s.Position(axis))
	if latency > 0 {
		time.Sleep(latency)
	}
	return nil
}

// Home returns both axes to zero.
func (s *Simulator) Home() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos[Axis1] = 0
	s.pos[Axis2] = 0
	s.homes++
	return nil
}

func (s *Simulator) Ping() error { return nil }

func (s *Simulator) Enable() error {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Disable() error {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Close() error { return nil }

// Position returns the absolute step count of axis relative to home.
func (s *Simulator) Position(axis Axis) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos[axis]
}

// Enabled reports whether the drivers are currently engaged.
func (s *Simulator) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// History returns a copy of all acknowledged moves.
func (s *Simulator) History() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.history...)
}

// Homes returns how many times Home was called.
func (s *Simulator) Homes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.homes
}

// ResetHistory clears the recorded moves without touching the position.
func (s *Simulator) ResetHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
