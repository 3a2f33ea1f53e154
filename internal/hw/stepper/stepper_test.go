package stepper

import (
	"testing"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/gpio"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	calls  []gpioCall
	closed bool
}

type gpioCall struct {
	op    string // "setup", "write"
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	return gpio.Low, nil
}

func (d *recordingDriver) Close() error {
	d.closed = true
	return nil
}

func (d *recordingDriver) writesTo(pin int) []gpioCall {
	var result []gpioCall
	for _, c := range d.calls {
		if c.op == "write" && c.pin == pin {
			result = append(result, c)
		}
	}
	return result
}

func (d *recordingDriver) pulses(pin int) int {
	n := 0
	for _, c := range d.writesTo(pin) {
		if c.level == gpio.High {
			n++
		}
	}
	return n
}

func axisConfig(step, dir, enable int) Config {
	return Config{
		StepPin:       step,
		DirPin:        dir,
		EnablePin:     enable,
		StepsPerRev:   200,
		Microstepping: 16,
		StepDelay:     time.Microsecond,
	}
}

func TestStepper_MoveSteps(t *testing.T) {
	tests := []struct {
		name    string
		steps   int
		wantDir gpio.Level
		pulses  int
	}{
		{"forward", 10, gpio.High, 10},
		{"backward", -5, gpio.Low, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := &recordingDriver{}
			s := NewStepper(drv, axisConfig(17, 27, 5))
			drv.calls = nil

			if err := s.MoveSteps(tt.steps); err != nil {
				t.Fatalf("MoveSteps: %v", err)
			}
			if first := drv.calls[0]; first.pin != 27 || first.level != tt.wantDir {
				t.Errorf("first write = pin %d level %v, want dir pin 27 level %v", first.pin, first.level, tt.wantDir)
			}
			if got := drv.pulses(17); got != tt.pulses {
				t.Errorf("pulses = %d, want %d", got, tt.pulses)
			}
		})
	}
}

func TestStepper_MoveStepsZero(t *testing.T) {
	drv := &recordingDriver{}
	s := NewStepper(drv, axisConfig(17, 27, 5))
	drv.calls = nil

	if err := s.MoveSteps(0); err != nil {
		t.Fatalf("MoveSteps: %v", err)
	}
	if len(drv.calls) != 0 {
		t.Errorf("zero steps should produce no GPIO calls, got %d", len(drv.calls))
	}
}

func TestStepper_StepPulsePattern(t *testing.T) {
	drv := &recordingDriver{}
	s := NewStepper(drv, axisConfig(17, 27, 5))
	drv.calls = nil

	_ = s.MoveSteps(1)

	got := drv.writesTo(17)
	if len(got) != 2 || got[0].level != gpio.High || got[1].level != gpio.Low {
		t.Errorf("single step should write HIGH then LOW on step pin, got %v", got)
	}
}

func TestStepper_EnableDisable(t *testing.T) {
	drv := &recordingDriver{}
	s := NewStepper(drv, axisConfig(17, 27, 5))
	drv.calls = nil

	_ = s.Enable()
	_ = s.Disable()

	got := drv.writesTo(5)
	if len(got) != 2 || got[0].level != gpio.Low || got[1].level != gpio.High {
		t.Errorf("Enable/Disable should write LOW then HIGH to enable pin, got %v", got)
	}
}

func TestStepper_NoEnablePin(t *testing.T) {
	drv := &recordingDriver{}
	s := NewStepper(drv, axisConfig(17, 27, 0))
	drv.calls = nil

	_ = s.Enable()
	_ = s.Disable()
	if len(drv.calls) != 0 {
		t.Errorf("with EnablePin=0, Enable/Disable should produce no GPIO calls, got %d", len(drv.calls))
	}
}

func TestStepper_DefaultStepDelay(t *testing.T) {
	s := NewStepper(&recordingDriver{}, Config{StepPin: 17, DirPin: 27})
	if s.delay != time.Millisecond {
		t.Errorf("default delay = %v, want 1ms", s.delay)
	}
}

func TestStage_ForwardReverseTracksNet(t *testing.T) {
	drv := &recordingDriver{}
	st := NewStage(drv, axisConfig(17, 27, 5), axisConfig(22, 23, 6))
	drv.calls = nil

	if err := st.Forward(actuator.Axis1, 4); err != nil {
		t.Fatal(err)
	}
	if err := st.Reverse(actuator.Axis2, 3); err != nil {
		t.Fatal(err)
	}

	if got := drv.pulses(17); got != 4 {
		t.Errorf("axis1 pulses = %d, want 4", got)
	}
	if got := drv.pulses(22); got != 3 {
		t.Errorf("axis2 pulses = %d, want 3", got)
	}
	if st.Net(actuator.Axis1) != 4 || st.Net(actuator.Axis2) != -3 {
		t.Errorf("net = (%d, %d), want (4, -3)", st.Net(actuator.Axis1), st.Net(actuator.Axis2))
	}
}

func TestStage_RejectsBadMoves(t *testing.T) {
	st := NewStage(&recordingDriver{}, axisConfig(17, 27, 5), axisConfig(22, 23, 6))

	if err := st.Forward(actuator.Axis(9), 1); err == nil {
		t.Error("expected error for unknown axis")
	}
	if err := st.Forward(actuator.Axis1, -1); err == nil {
		t.Error("expected error for negative forward count")
	}
	if err := st.Reverse(actuator.Axis1, -1); err == nil {
		t.Error("expected error for negative reverse count")
	}
	if st.Net(actuator.Axis1) != 0 {
		t.Error("rejected moves must not change net travel")
	}
}

func TestStage_HomeReturnsNetTravel(t *testing.T) {
	drv := gpio.NewMockDriver()
	st := NewStage(drv, axisConfig(17, 27, 5), axisConfig(22, 23, 6))

	_ = st.Forward(actuator.Axis1, 6)
	_ = st.Forward(actuator.Axis2, 2)
	if err := st.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}

	if got := drv.Pulses(17); got != 12 {
		t.Errorf("axis1 pulses = %d, want 6 out and 6 back", got)
	}
	if got := drv.Pulses(22); got != 4 {
		t.Errorf("axis2 pulses = %d, want 2 out and 2 back", got)
	}
	if dir, _ := drv.ReadPin(27); dir != gpio.Low {
		t.Error("axis1 should have moved backward last")
	}
	if st.Net(actuator.Axis1) != 0 || st.Net(actuator.Axis2) != 0 {
		t.Error("net travel should be zero after Home")
	}
}

func TestStage_CloseReleasesDrivers(t *testing.T) {
	drv := &recordingDriver{}
	var a actuator.Actuator = NewStage(drv, axisConfig(17, 27, 5), axisConfig(22, 23, 6))
	drv.calls = nil

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if !drv.closed {
		t.Error("driver not closed")
	}
	for _, pin := range []int{5, 6} {
		w := drv.writesTo(pin)
		if len(w) != 1 || w[0].level != gpio.High {
			t.Errorf("enable pin %d: got %v, want one HIGH write", pin, w)
		}
	}
}
