package motion

import (
	"fmt"
	"sync"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
)

// Offset is a signed step position on both axes.
type Offset struct {
	Axis1 int `json:"axis1"`
	Axis2 int `json:"axis2"`
}

// Add returns o + p.
func (o Offset) Add(p Offset) Offset {
	return Offset{Axis1: o.Axis1 + p.Axis1, Axis2: o.Axis2 + p.Axis2}
}

// Sub returns o - p.
func (o Offset) Sub(p Offset) Offset {
	return Offset{Axis1: o.Axis1 - p.Axis1, Axis2: o.Axis2 - p.Axis2}
}

// Controller sits between the scan logic and the actuator. It issues signed
// moves and keeps a ledger of the net steps acknowledged on each axis since
// the last Home, so a position can be marked and returned to exactly.
type Controller struct {
	mu  sync.Mutex
	act actuator.Actuator
	net Offset
}

func NewController(act actuator.Actuator) *Controller {
	return &Controller{act: act}
}

// Move moves axis by signed steps. The ledger only changes when the actuator
// acknowledged the move.
func (c *Controller) Move(axis actuator.Axis, steps int) error {
	if steps == 0 {
		return nil
	}
	dir := "forward"
	if steps < 0 {
		dir = "reverse"
	}
	debug.Move(int(axis), abs(steps), dir)

	if err := actuator.Move(c.act, axis, steps); err != nil {
		return fmt.Errorf("%s %s %d steps: %w", axis, dir, abs(steps), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch axis {
	case actuator.Axis1:
		c.net.Axis1 += steps
	case actuator.Axis2:
		c.net.Axis2 += steps
	}
	return nil
}

// MoveBy moves axis 2 first, then axis 1. The axes never move at the same time.
func (c *Controller) MoveBy(d Offset) error {
	if err := c.Move(actuator.Axis2, d.Axis2); err != nil {
		return err
	}
	return c.Move(actuator.Axis1, d.Axis1)
}

// Offset returns the net steps acknowledged since the last Home.
func (c *Controller) Offset() Offset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net
}

// ReturnTo moves back to a previously read Offset.
func (c *Controller) ReturnTo(mark Offset) error {
	return c.MoveBy(mark.Sub(c.Offset()))
}

// Home drives the actuator to its reference position and clears the ledger.
func (c *Controller) Home() error {
	debug.Live("Homing both axes")
	if err := c.act.Home(); err != nil {
		return fmt.Errorf("home: %w", err)
	}
	c.mu.Lock()
	c.net = Offset{}
	c.mu.Unlock()
	return nil
}

// Ping checks the link to the controller when the actuator supports it.
func (c *Controller) Ping() error {
	if p, ok := c.act.(actuator.Pinger); ok {
		return p.Ping()
	}
	return nil
}

// EnableMotors engages the drivers, if the actuator can release them.
func (c *Controller) EnableMotors() error {
	if s, ok := c.act.(actuator.Switcher); ok {
		return s.Enable()
	}
	return nil
}

// DisableMotors releases the drivers, if the actuator supports it.
func (c *Controller) DisableMotors() error {
	if s, ok := c.act.(actuator.Switcher); ok {
		return s.Disable()
	}
	return nil
}

// Close closes the underlying actuator.
func (c *Controller) Close() error {
	return c.act.Close()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
