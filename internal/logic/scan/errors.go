package scan

import (
	"errors"
	"fmt"

	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
)

// Kind classifies scan failures.
type Kind int

const (
	// KindTransport: actuator or meter unreachable, or a move failed outright.
	KindTransport Kind = iota + 1
	// KindMoveTimeout: a move was not acknowledged in time.
	KindMoveTimeout
	// KindMeasurement: the meter produced no value for a point.
	KindMeasurement
	// KindInvalidTarget: a point index or cell outside the grid.
	KindInvalidTarget
	// KindConfiguration: unusable scan parameters.
	KindConfiguration
	// KindInterrupted: cancelled between points.
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMoveTimeout:
		return "move timeout"
	case KindMeasurement:
		return "measurement"
	case KindInvalidTarget:
		return "invalid target"
	case KindConfiguration:
		return "configuration"
	case KindInterrupted:
		return "interrupted"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	// ErrBusy is returned when another operation holds the positioner.
	ErrBusy = errors.New("scan: positioner busy with another operation")
	// ErrNoScan is returned by zoom and correction before any area scan ran.
	ErrNoScan = errors.New("scan: no area scan results")
	// ErrPositionLost is returned when the probe position is no longer known.
	// Home the positioner to recover.
	ErrPositionLost = errors.New("scan: probe position unknown, home the positioner")
)

// Error is a typed scan failure. Index is the point being approached or
// measured, 0 when not tied to a point.
type Error struct {
	Kind  Kind
	Op    string
	Index int
	Err   error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Index > 0 {
		msg += fmt.Sprintf(" at point %d", e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func newError(k Kind, op string, index int, err error) *Error {
	return &Error{Kind: k, Op: op, Index: index, Err: err}
}

// moveError classifies an actuator failure.
func moveError(op string, index int, err error) *Error {
	if errors.Is(err, actuator.ErrTimeout) {
		return newError(KindMoveTimeout, op, index, err)
	}
	return newError(KindTransport, op, index, err)
}
