package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// Fake is an in-memory Port. A responder callback produces the bytes the
// device would send back for each write, so request/response protocols can be
// scripted in tests and simulations.
type Fake struct {
	mu      sync.Mutex
	in      bytes.Buffer
	written bytes.Buffer
	closed  bool
	resets  int
	timeout time.Duration

	// Respond is called with each written chunk; its result is queued for reading.
	Respond func(written []byte) []byte
	// WriteErr, if set, is returned by every Write.
	WriteErr error
}

var errClosed = errors.New("serialport: port closed")

// NewFake returns a fake port answering writes with respond (may be nil).
func NewFake(respond func([]byte) []byte) *Fake {
	return &Fake{Respond: respond}
}

func (f *Fake) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errClosed
	}
	if f.in.Len() == 0 {
		// Behave like a timed-out read on a real port.
		return 0, nil
	}
	return f.in.Read(p)
}

func (f *Fake) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errClosed
	}
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}
	f.written.Write(p)
	if f.Respond != nil {
		f.in.Write(f.Respond(append([]byte(nil), p...)))
	}
	return len(p), nil
}

// Feed queues data for reading as if the device had sent it unprompted.
func (f *Fake) Feed(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in.Write(data)
}

func (f *Fake) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = d
	return nil
}

func (f *Fake) ResetInputBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in.Reset()
	f.resets++
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Written returns everything written to the port so far.
func (f *Fake) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

// Resets returns how many times the input buffer was reset.
func (f *Fake) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
