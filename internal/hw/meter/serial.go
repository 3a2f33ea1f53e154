package meter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/serialport"
)

// SerialConfig configures a line-oriented serial instrument.
type SerialConfig struct {
	Query   string        // written after the dwell, e.g. "MEAS?\r\n"
	Timeout time.Duration // for the answer line
}

// Serial queries an instrument over a serial port and reads one line back.
type Serial struct {
	mu   sync.Mutex
	port serialport.Port
	cfg  SerialConfig
}

// NewSerial wraps an open port.
func NewSerial(port serialport.Port, cfg SerialConfig) *Serial {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Query == "" {
		cfg.Query = "MEAS?\r\n"
	}
	return &Serial{port: port, cfg: cfg}
}

func (s *Serial) Measure(ctx context.Context, req Request) (float64, error) {
	if err := Dwell(ctx, req.Dwell); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("meter: reset input: %w", err)
	}
	if err := s.port.SetReadTimeout(50 * time.Millisecond); err != nil {
		return 0, fmt.Errorf("meter: set read timeout: %w", err)
	}
	debug.Serial("->", []byte(s.cfg.Query))
	if _, err := s.port.Write([]byte(s.cfg.Query)); err != nil {
		return 0, fmt.Errorf("meter: write query: %w", err)
	}

	line, err := s.readLine(ctx)
	if err != nil {
		return 0, err
	}
	debug.Serial("<-", []byte(line))
	v, err := ParseReading(line)
	if err != nil {
		return 0, fmt.Errorf("meter: point %s: %w", req.Tag.Filename(req.Index), err)
	}
	return v, nil
}

func (s *Serial) readLine(ctx context.Context) (string, error) {
	deadline := time.Now().Add(s.cfg.Timeout)
	var line []byte
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("meter: no answer within %v: %w", s.cfg.Timeout, ErrNoReading)
		}
		n, err := s.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("meter: read: %w", err)
		}
		for _, b := range buf[:n] {
			if b == '\n' {
				return string(line), nil
			}
			line = append(line, b)
		}
	}
}

func (s *Serial) Close() error {
	return s.port.Close()
}
