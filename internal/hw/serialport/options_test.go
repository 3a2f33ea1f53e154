package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestOptionsNormalizeDefaults(t *testing.T) {
	opts, err := Options{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Options{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, opts)
}

func TestOptionsNormalizeParityAliases(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"none", "N"},
		{" even ", "E"},
		{"o", "O"},
		{"ODD", "O"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			opts, err := Options{Parity: tt.in}.Normalize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.Parity)
		})
	}
}

func TestOptionsNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"data bits too small", Options{DataBits: 4}},
		{"data bits too large", Options{DataBits: 9}},
		{"stop bits", Options{StopBits: 3}},
		{"parity", Options{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestOptionsSerialMode(t *testing.T) {
	mode, err := Options{BaudRate: 19200, StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 19200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	_, err = Options{Parity: "x"}.SerialMode()
	assert.Error(t, err)
}
