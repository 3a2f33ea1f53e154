package scan

import (
	"fmt"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
)

type jogKey struct {
	axis     actuator.Axis
	gridStep float64
	unit     float64
}

// MoveAxis moves one axis by raw signed steps. The probe then no longer sits
// on a grid cell, so zoom and correction are refused until the next scan or Home.
func (s *Session) MoveAxis(axis actuator.Axis, steps int) error {
	release, err := s.acquire("move")
	if err != nil {
		return err
	}
	defer release()
	return s.manualMove(axis, steps)
}

// JogAxis moves one axis by cells grid steps of gridStep, carrying the
// fractional steps between jogs of the same axis and spacing.
func (s *Session) JogAxis(axis actuator.Axis, cells int, gridStep, unit float64) error {
	release, err := s.acquire("move")
	if err != nil {
		return err
	}
	defer release()

	if !axis.Valid() {
		return newError(KindConfiguration, "move", 0, actuator.ErrInvalidAxis)
	}
	k := jogKey{axis, gridStep, unit}
	st, ok := s.jog[k]
	if !ok {
		st, err = geometry.NewStride(gridStep, unit)
		if err != nil {
			return newError(KindConfiguration, "move", 0, err)
		}
		s.jog[k] = st
	}

	steps := 0
	n := cells
	if n < 0 {
		n = -n
	}
	for i := 0; i < n; i++ {
		steps += st.Next()
	}
	if cells < 0 {
		steps = -steps
	}
	return s.manualMove(axis, steps)
}

func (s *Session) manualMove(axis actuator.Axis, steps int) error {
	if !axis.Valid() {
		return newError(KindConfiguration, "move", 0, actuator.ErrInvalidAxis)
	}
	s.mu.Lock()
	s.atCell = false
	s.mu.Unlock()

	debug.Live("Manual move: %s %+d", axis, steps)
	if err := s.motion.Move(axis, steps); err != nil {
		return moveError("move", 0, err)
	}
	return nil
}

// Home drives the positioner home and clears a lost position. The probe is
// then at the centre of the next area scan.
func (s *Session) Home() error {
	release, err := s.acquire("home")
	if err != nil {
		return err
	}
	defer release()

	if err := s.motion.Home(); err != nil {
		return newError(KindTransport, "home", 0, err)
	}
	s.mu.Lock()
	s.lost = false
	s.atCell = false
	s.mu.Unlock()
	debug.Info("Positioner homed")
	return nil
}

// Close releases the positioner. It waits for a running operation to finish.
func (s *Session) Close() error {
	s.busy.Lock()
	defer s.busy.Unlock()
	if c, ok := s.meter.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			debug.Error(fmt.Errorf("close meter: %w", err))
		}
	}
	return s.motion.Close()
}
