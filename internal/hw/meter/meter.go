// Package meter holds the measurement instruments read at each grid point.
package meter

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNoReading is returned when an instrument answered but gave no usable value.
var ErrNoReading = errors.New("meter: no reading")

// Tag labels a measurement. It never affects control flow.
type Tag struct {
	Type  string `yaml:"type" json:"type"`   // Limb or Body
	Field string `yaml:"field" json:"field"` // Electric or Magnetic
	Side  string `yaml:"side" json:"side"`   // Front, Back, Top, ...
	Mode  string `yaml:"mode" json:"mode"`   // e.g. "ACT" or "A"/"B" magnetic mode
	RBW   string `yaml:"rbw" json:"rbw"`     // resolution bandwidth label
}

// Filename returns the point name for index, e.g. "L_Efront12" or "B_HS3".
func (t Tag) Filename(index int) string {
	var b strings.Builder
	if t.Type == "Limb" {
		b.WriteByte('L')
	} else {
		b.WriteByte('B')
	}
	b.WriteByte('_')
	if t.Field == "Electric" {
		b.WriteByte('E')
	} else {
		b.WriteByte('H')
	}
	if t.Side == "Back" {
		b.WriteByte('S')
	} else {
		b.WriteString(strings.ToLower(t.Side))
	}
	b.WriteString(strconv.Itoa(index))
	return b.String()
}

// Request is one measurement at a grid point.
type Request struct {
	Dwell time.Duration // settle time before reading
	Tag   Tag
	Index int // traversal index of the point
}

// Meter takes one measurement. Implementations honour Dwell and return early
// with ctx.Err() when ctx is done.
type Meter interface {
	Measure(ctx context.Context, req Request) (float64, error)
}

// Func adapts a function to the Meter interface.
type Func func(ctx context.Context, req Request) (float64, error)

func (f Func) Measure(ctx context.Context, req Request) (float64, error) {
	return f(ctx, req)
}

// Dwell waits d or until ctx is done.
func Dwell(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ParseReading extracts the first numeric field of an instrument line.
// Fields may be separated by commas, semicolons, tabs or spaces.
func ParseReading(line string) (float64, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})
	if len(fields) == 0 {
		return 0, ErrNoReading
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.Join(ErrNoReading, err)
	}
	return v, nil
}
