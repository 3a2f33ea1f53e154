package stepper

import (
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/gpio"
)

// Config describes one A4988-driven motor.
type Config struct {
	StepPin       int
	DirPin        int
	EnablePin     int // BCM pin, 0 = not wired. Active LOW.
	StepsPerRev   int
	Microstepping int
	StepDelay     time.Duration // half period of the STEP pulse
}

// Stepper pulses a single motor. It has no notion of position; the Stage
// keeps track of net travel.
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration
}

// NewStepper configures the pins of one motor and engages its driver.
// A zero StepDelay defaults to 1ms.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	s := &Stepper{gpio: g, cfg: cfg, delay: cfg.StepDelay}
	if s.delay <= 0 {
		s.delay = time.Millisecond
	}

	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low)
	}
	return s
}

// MoveSteps moves by a signed number of steps. DIR is HIGH for positive counts.
func (s *Stepper) MoveSteps(steps int) error {
	if steps == 0 {
		return nil
	}

	dir, n := gpio.High, steps
	if steps < 0 {
		dir, n = gpio.Low, -steps
	}
	debug.Verbose("Stepper: %+d steps on STEP pin %d", steps, s.cfg.StepPin)

	if err := s.gpio.WritePin(s.cfg.DirPin, dir); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := s.pulse(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stepper) pulse() error {
	for _, lvl := range []gpio.Level{gpio.High, gpio.Low} {
		if err := s.gpio.WritePin(s.cfg.StepPin, lvl); err != nil {
			return err
		}
		time.Sleep(s.delay)
	}
	return nil
}

// Enable engages the driver (ENABLE LOW); the motor holds position.
func (s *Stepper) Enable() error {
	return s.setEnable(gpio.Low)
}

// Disable releases the driver (ENABLE HIGH); the motor freewheels.
func (s *Stepper) Disable() error {
	return s.setEnable(gpio.High)
}

func (s *Stepper) setEnable(lvl gpio.Level) error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, lvl)
}
