package gpio

import (
	"sync"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver abstracts the GPIO lines used by the stepper stage, so the stage can
// run on a Raspberry Pi or against a mock on a workstation.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver returns a MockDriver when mock is set, the go-rpio driver otherwise.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (no stage hardware)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// MockDriver keeps pin levels in memory and counts rising edges per pin,
// which is enough to check step/dir/enable sequencing without hardware.
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	rises  map[int]int
}

func NewMockDriver() *MockDriver {
	return &MockDriver{
		modes:  make(map[int]PinMode),
		levels: make(map[int]Level),
		rises:  make(map[int]int),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	if level == High && m.levels[pin] == Low {
		m.rises[pin]++
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}

// Pulses returns the number of low-to-high transitions written to pin.
func (m *MockDriver) Pulses(pin int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rises[pin]
}
