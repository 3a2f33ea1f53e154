// Package c4 drives an Arrick Robotics C4 stepper controller over a serial
// line. Two MD2 motors are attached: motor 1 is Axis1, motor 2 is Axis2.
package c4

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/serialport"
)

const (
	// DefaultStepUnit is the probe travel per motor step, in centimetres.
	DefaultStepUnit = 0.00508
	// DefaultHome1 and DefaultHome2 are the home offsets written before homing.
	DefaultHome1 = 3788
	DefaultHome2 = 4300

	identity = "C4"
	ack      = 'o'
	pollRead = 100 * time.Millisecond
)

// ErrNotC4 is returned when the device on the port does not identify as a C4.
var ErrNotC4 = errors.New("c4: device did not identify as a C4 controller")

// Config holds the controller settings.
type Config struct {
	AckTimeout  time.Duration // per move
	HomeTimeout time.Duration // for the whole homing sequence
	Home1       int
	Home2       int
}

func (c Config) withDefaults() Config {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 30 * time.Second
	}
	if c.HomeTimeout <= 0 {
		c.HomeTimeout = 2 * time.Minute
	}
	if c.Home1 == 0 {
		c.Home1 = DefaultHome1
	}
	if c.Home2 == 0 {
		c.Home2 = DefaultHome2
	}
	return c
}

// Controller implements actuator.Actuator for the C4.
type Controller struct {
	mu   sync.Mutex
	port serialport.Port
	cfg  Config
}

// New wraps an already opened port. No traffic is sent.
func New(port serialport.Port, cfg Config) *Controller {
	return &Controller{port: port, cfg: cfg.withDefaults()}
}

// Open opens path, checks the controller identity and returns the controller.
// The port is closed again if the device does not answer as a C4.
func Open(open serialport.Opener, path string, opts serialport.Options, cfg Config) (*Controller, error) {
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	c := New(port, cfg)
	if err := c.Ping(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	debug.Info("Established connection with C4 controller on %s", path)
	return c, nil
}

// Discover tries each path in turn and returns the first one with a C4 attached.
func Discover(open serialport.Opener, paths []string, opts serialport.Options, cfg Config) (*Controller, string, error) {
	var errs []error
	for _, p := range paths {
		c, err := Open(open, p, opts, cfg)
		if err == nil {
			return c, p, nil
		}
		debug.Verbose("C4 discovery: %s: %v", p, err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, "", fmt.Errorf("c4: no serial ports to probe")
	}
	return nil, "", fmt.Errorf("c4: controller not found: %w", errors.Join(errs...))
}

// Ping sends the identify query and checks the answer.
func (c *Controller) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("!1fp\r"); err != nil {
		return err
	}
	got, err := c.readN(len(identity), c.cfg.AckTimeout)
	if err != nil {
		return err
	}
	if string(got) != identity {
		return fmt.Errorf("%w (got %q)", ErrNotC4, got)
	}
	return nil
}

// Forward moves axis by steps in the positive direction.
func (c *Controller) Forward(axis actuator.Axis, steps int) error {
	return c.move(axis, steps, 'r')
}

// Reverse moves axis by steps in the negative direction.
func (c *Controller) Reverse(axis actuator.Axis, steps int) error {
	return c.move(axis, steps, 'f')
}

func (c *Controller) move(axis actuator.Axis, steps int, dir byte) error {
	if err := actuator.CheckMove(axis, steps); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := fmt.Sprintf("!1m%d%c%dn\r", int(axis), dir, steps)
	if err := c.send(cmd); err != nil {
		return err
	}
	return c.waitAck(1, c.cfg.AckTimeout, cmd)
}

// Home writes the home offsets for both motors and homes them. It blocks
// until both motors report completion.
func (c *Controller) Home() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.cfg.HomeTimeout)
	for i, off := range []int{c.cfg.Home1, c.cfg.Home2} {
		cmd := fmt.Sprintf("!1wh%d,r,%d\r", i+1, off)
		if err := c.send(cmd); err != nil {
			return err
		}
		if _, err := c.readLine(time.Until(deadline)); err != nil {
			return fmt.Errorf("c4: write home %d: %w", i+1, err)
		}
	}

	cmd := "!1h12\r"
	if err := c.send(cmd); err != nil {
		return err
	}
	return c.waitAck(2, time.Until(deadline), cmd)
}

func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Close()
}

func (c *Controller) send(cmd string) error {
	if err := c.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("c4: reset input: %w", err)
	}
	if err := c.port.SetReadTimeout(pollRead); err != nil {
		return fmt.Errorf("c4: set read timeout: %w", err)
	}
	debug.Serial("->", []byte(cmd))
	if _, err := c.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("c4: write %q: %w", cmd, err)
	}
	return nil
}

// waitAck reads until n completion bytes arrived. Other bytes are ignored.
func (c *Controller) waitAck(n int, timeout time.Duration, cmd string) error {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1)
	for n > 0 {
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %q", actuator.ErrTimeout, cmd)
		}
		k, err := c.port.Read(buf)
		if err != nil {
			return fmt.Errorf("c4: read ack: %w", err)
		}
		if k == 1 && buf[0] == ack {
			n--
		}
	}
	debug.Serial("<-", []byte{ack})
	return nil
}

func (c *Controller) readN(n int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if !time.Now().Before(deadline) {
			return out, fmt.Errorf("%w: waiting for %d bytes", actuator.ErrTimeout, n)
		}
		k, err := c.port.Read(buf[:n-len(out)])
		if err != nil {
			return out, fmt.Errorf("c4: read: %w", err)
		}
		out = append(out, buf[:k]...)
	}
	debug.Serial("<-", out)
	return out, nil
}

func (c *Controller) readLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var line []byte
	buf := make([]byte, 1)
	for {
		if !time.Now().Before(deadline) {
			return string(line), fmt.Errorf("%w: waiting for line", actuator.ErrTimeout)
		}
		k, err := c.port.Read(buf)
		if err != nil {
			return string(line), fmt.Errorf("c4: read: %w", err)
		}
		if k == 0 {
			continue
		}
		if buf[0] == '\n' || buf[0] == '\r' {
			debug.Serial("<-", line)
			return string(line), nil
		}
		line = append(line, buf[0])
	}
}
