package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
)

// RPiDriver drives BCM-numbered Raspberry Pi pins through go-rpio.
type RPiDriver struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// NewRPiRealDriver maps GPIO memory. It needs /dev/gpiomem access (or root)
// and fails on any machine that is not a Raspberry Pi.
func NewRPiRealDriver() (*RPiDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open GPIO (not a Raspberry Pi?): %w", err)
	}
	debug.Info("GPIO memory mapped (go-rpio)")
	return &RPiDriver{pins: make(map[int]rpio.Pin)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.configure(pin, mode)
	return err
}

func (r *RPiDriver) configure(pin int, mode PinMode) (rpio.Pin, error) {
	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return p, fmt.Errorf("unknown pin mode: %d", mode)
	}
	r.pins[pin] = p
	return p, nil
}

// lookup returns a configured pin, configuring it with mode on first use.
func (r *RPiDriver) lookup(pin int, mode PinMode) (rpio.Pin, error) {
	if p, ok := r.pins[pin]; ok {
		return p, nil
	}
	return r.configure(pin, mode)
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.lookup(pin, Output)
	if err != nil {
		return err
	}
	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.lookup(pin, Input)
	if err != nil {
		return Low, err
	}
	return p.Read() == rpio.High, nil
}

// Close puts every used pin back to input and unmaps GPIO memory.
func (r *RPiDriver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for n, p := range r.pins {
		debug.Trace("GPIO release pin %d", n)
		p.Input()
	}
	return rpio.Close()
}
