package serialport

import (
	"io"
	"time"
)

// Port is the subset of go.bug.st/serial.Port used by the instrument drivers.
// Read returns (0, nil) when the read timeout elapses without data.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a port at path. Drivers take an Opener so tests can inject fakes.
type Opener func(path string, opts Options) (Port, error)
