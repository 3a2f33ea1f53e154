package meter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Manual asks an operator to type each value, for instruments that cannot be
// read automatically.
type Manual struct {
	in  *bufio.Reader
	out io.Writer
}

func NewManual(in io.Reader, out io.Writer) *Manual {
	return &Manual{in: bufio.NewReader(in), out: out}
}

type lineResult struct {
	line string
	err  error
}

func (m *Manual) Measure(ctx context.Context, req Request) (float64, error) {
	if err := Dwell(ctx, req.Dwell); err != nil {
		return 0, err
	}

	for {
		fmt.Fprintf(m.out, "Point %d (%s): enter value: ", req.Index, req.Tag.Filename(req.Index))

		ch := make(chan lineResult, 1)
		go func() {
			line, err := m.in.ReadString('\n')
			ch <- lineResult{line, err}
		}()

		var res lineResult
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case res = <-ch:
		}

		if strings.TrimSpace(res.line) == "" && res.err != nil {
			return 0, fmt.Errorf("meter: operator input: %w", res.err)
		}
		v, err := ParseReading(res.line)
		if err == nil {
			return v, nil
		}
		fmt.Fprintf(m.out, "not a number: %q\n", strings.TrimSpace(res.line))
		if res.err != nil {
			return 0, fmt.Errorf("meter: operator input: %w", res.err)
		}
	}
}
