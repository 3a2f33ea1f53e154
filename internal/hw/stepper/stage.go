package stepper

import (
	"sync"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/gpio"
)

// Stage is a two-axis positioner built from two GPIO steppers.
// It has no limit switches: the position where the stage was powered on is
// home, and Home drives back by the net steps taken since then.
type Stage struct {
	mu     sync.Mutex
	driver gpio.Driver
	axes   map[actuator.Axis]*Stepper
	net    map[actuator.Axis]int
}

// NewStage builds a stage on driver with one motor per axis.
func NewStage(driver gpio.Driver, axis1, axis2 Config) *Stage {
	return &Stage{
		driver: driver,
		axes: map[actuator.Axis]*Stepper{
			actuator.Axis1: NewStepper(driver, axis1),
			actuator.Axis2: NewStepper(driver, axis2),
		},
		net: map[actuator.Axis]int{},
	}
}

func (s *Stage) Forward(axis actuator.Axis, steps int) error {
	if err := actuator.CheckMove(axis, steps); err != nil {
		return err
	}
	return s.move(axis, steps)
}

func (s *Stage) Reverse(axis actuator.Axis, steps int) error {
	if err := actuator.CheckMove(axis, steps); err != nil {
		return err
	}
	return s.move(axis, -steps)
}

func (s *Stage) move(axis actuator.Axis, signed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.axes[axis].MoveSteps(signed); err != nil {
		return err
	}
	s.net[axis] += signed
	return nil
}

// Home moves axis 2 then axis 1 back to where the stage started.
func (s *Stage) Home() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range []actuator.Axis{actuator.Axis2, actuator.Axis1} {
		back := -s.net[a]
		debug.Verbose("Stage home: %s %+d", a, back)
		if err := s.axes[a].MoveSteps(back); err != nil {
			return err
		}
		s.net[a] = 0
	}
	return nil
}

// Net returns the signed steps taken on axis since start or the last Home.
func (s *Stage) Net(axis actuator.Axis) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net[axis]
}

func (s *Stage) Ping() error { return nil }

// Enable engages both drivers.
func (s *Stage) Enable() error {
	return s.each((*Stepper).Enable)
}

// Disable releases both drivers so they stop injecting noise while measuring.
func (s *Stage) Disable() error {
	return s.each((*Stepper).Disable)
}

func (s *Stage) each(fn func(*Stepper) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range []actuator.Axis{actuator.Axis1, actuator.Axis2} {
		if err := fn(s.axes[a]); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the drivers and the GPIO lines.
func (s *Stage) Close() error {
	if err := s.Disable(); err != nil {
		debug.Error(err)
	}
	return s.driver.Close()
}
