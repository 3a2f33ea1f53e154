package serialport

import (
	"fmt"

	"go.bug.st/serial"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
)

// Open opens a real serial port at path.
func Open(path string, opts Options) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	debug.Verbose("Opening serial port %s (%d baud)", path, mode.BaudRate)
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return p, nil
}

// List returns the serial ports present on the system.
func List() ([]string, error) {
	return serial.GetPortsList()
}
