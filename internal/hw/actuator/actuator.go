package actuator

import (
	"errors"
	"fmt"
)

// Axis identifies one of the two positioner axes.
// Axis1 moves the probe along grid columns (x), Axis2 along grid rows (y).
type Axis int

const (
	Axis1 Axis = 1
	Axis2 Axis = 2
)

// Valid reports whether a is a known axis.
func (a Axis) Valid() bool {
	return a == Axis1 || a == Axis2
}

func (a Axis) String() string {
	switch a {
	case Axis1:
		return "axis1"
	case Axis2:
		return "axis2"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

var (
	// ErrTimeout is returned when a commanded move is not acknowledged in time.
	ErrTimeout = errors.New("actuator: move not acknowledged before timeout")
	// ErrInvalidAxis is returned for axes other than Axis1 and Axis2.
	ErrInvalidAxis = errors.New("actuator: invalid axis")
)

// Actuator drives the two-axis positioner.
// Every call blocks until the controller acknowledges the move or fails.
// Step counts are magnitudes; direction is chosen by the method.
type Actuator interface {
	Forward(axis Axis, steps int) error
	Reverse(axis Axis, steps int) error
	// Home moves both axes to the configured reference position.
	Home() error
	Close() error
}

// Pinger is implemented by actuators that can verify the link to their
// controller before any motion is attempted.
type Pinger interface {
	Ping() error
}

// Switcher is implemented by actuators whose drivers can be released
// (no holding torque) and re-engaged.
type Switcher interface {
	Enable() error
	Disable() error
}

// Move issues a signed move: positive steps go forward, negative reverse.
// Zero is a no-op.
func Move(a Actuator, axis Axis, steps int) error {
	switch {
	case steps > 0:
		return a.Forward(axis, steps)
	case steps < 0:
		return a.Reverse(axis, -steps)
	}
	return nil
}

// CheckMove validates the arguments shared by every Forward/Reverse implementation.
func CheckMove(axis Axis, steps int) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAxis, int(axis))
	}
	if steps < 0 {
		return fmt.Errorf("actuator: negative step count %d", steps)
	}
	return nil
}
