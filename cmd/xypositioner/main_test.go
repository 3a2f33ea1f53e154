package main

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/config"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/serialport"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/motion"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
	"github.com/boboyejj/XY-Positioner-GUI/internal/web"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_AllZero(t *testing.T) {
	if err := validateCLIOverrides(0, 0, 0, 0); err != nil {
		t.Errorf("all zeros should be valid (use config defaults), got: %v", err)
	}
}

func TestValidateCLIOverrides_Valid(t *testing.T) {
	cases := []struct {
		name              string
		w, h, step, dwell float64
	}{
		{"area", 16.8, 11.2, 0, 0},
		{"step", 0, 0, 2.8, 0},
		{"dwell", 0, 0, 0, 0.5},
		{"max", 1000, 1000, 1000, 600},
		{"small", 0.001, 0.001, 0.001, 0.001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.w, tc.h, tc.step, tc.dwell); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_Invalid(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	cases := []struct {
		name              string
		w, h, step, dwell float64
	}{
		{"width_negative", -1, 0, 0, 0},
		{"height_too_large", 0, 1001, 0, 0},
		{"step_NaN", 0, 0, nan, 0},
		{"dwell_+Inf", 0, 0, 0, inf},
		{"dwell_too_long", 0, 0, 0, 601},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.w, tc.h, tc.step, tc.dwell); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("port = %d, want 8080", w.port())
	}
}

func TestWebPortFlag_Values(t *testing.T) {
	for _, s := range []string{"1", "8980", "65535"} {
		w := &webPortFlag{defaultPort: 8080}
		if err := w.Set(s); err != nil {
			t.Errorf("Set(%q): %v", s, err)
		}
		if w.String() != s {
			t.Errorf("String() = %q, want %q", w.String(), s)
		}
	}
	for _, s := range []string{"0", "-1", "65536", "abc"} {
		w := &webPortFlag{defaultPort: 8080}
		if err := w.Set(s); err == nil {
			t.Errorf("Set(%q): expected error", s)
		}
	}
	if (&webPortFlag{}).String() != "0" {
		t.Error("unset flag should print 0")
	}
}

// ---------- parseMove / parsePoints ----------

func TestParseMove(t *testing.T) {
	axis, steps, err := parseMove("2:-150")
	if err != nil {
		t.Fatal(err)
	}
	if axis != actuator.Axis2 || steps != -150 {
		t.Errorf("got axis %v steps %d", axis, steps)
	}
	for _, bad := range []string{"", "1", "3:10", "x:10", "1:ten"} {
		if _, _, err := parseMove(bad); err == nil {
			t.Errorf("parseMove(%q): expected error", bad)
		}
	}
}

func TestParsePoints(t *testing.T) {
	got, err := parsePoints(" 3, 7,12")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 3 || got[1] != 7 || got[2] != 12 {
		t.Errorf("got %v", got)
	}
	if got, err := parsePoints(""); err != nil || got != nil {
		t.Errorf("empty list: %v, %v", got, err)
	}
	for _, bad := range []string{"0", "a", "1,,2"} {
		if _, err := parsePoints(bad); err == nil {
			t.Errorf("parsePoints(%q): expected error", bad)
		}
	}
}

// ---------- overrides ----------

func TestOverrides_CLIAndWebProduceSameResult(t *testing.T) {
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	base := cfg.ScanParams()

	fromCLI := cliOverrides(5.6, 2.8, 1.4, 0.25, 2, "run").Apply(base)
	fromWeb := web.Overrides{Width: 5.6, Height: 2.8, GridStep: 1.4, DwellMs: 250, StartIndex: 2, Comment: "run"}.Apply(base)
	if fromCLI != fromWeb {
		t.Errorf("CLI %+v != web %+v", fromCLI, fromWeb)
	}
	if fromCLI.Dwell != 250*time.Millisecond {
		t.Errorf("dwell = %v", fromCLI.Dwell)
	}
	if fromCLI.StepUnit != base.StepUnit {
		t.Errorf("step unit changed: %v", fromCLI.StepUnit)
	}
}

// ---------- hardware selection ----------

func c4Port(path string, _ serialport.Options) (serialport.Port, error) {
	if path != "/dev/ttyUSB1" {
		return serialport.NewFake(func([]byte) []byte { return []byte("??") }), nil
	}
	return serialport.NewFake(func(b []byte) []byte {
		if string(b) == "!1fp\r" {
			return []byte("C4")
		}
		return nil
	}), nil
}

func TestOpenC4Discovers(t *testing.T) {
	cfg, err := config.Parse([]byte("controller:\n  ack_timeout_ms: 50\n"))
	if err != nil {
		t.Fatal(err)
	}
	list := func() ([]string, error) { return []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, nil }
	ctrl, err := openC4(cfg, c4Port, list)
	if err != nil {
		t.Fatalf("discovery failed: %v", err)
	}
	ctrl.Close()

	cfg.Controller.Port = "/dev/ttyUSB0"
	if _, err := openC4(cfg, c4Port, list); err == nil {
		t.Error("expected error for a port without a C4")
	}

	cfg.Controller.Port = ""
	failing := func() ([]string, error) { return nil, errors.New("no permission") }
	if _, err := openC4(cfg, c4Port, failing); err == nil {
		t.Error("expected error when ports cannot be listed")
	}
}

func TestNewActuatorAndMeter(t *testing.T) {
	cfg, err := config.Parse([]byte("controller:\n  type: sim\nmeter:\n  type: sim\n"))
	if err != nil {
		t.Fatal(err)
	}
	act, err := newActuator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := act.(*actuator.Simulator); !ok {
		t.Errorf("actuator = %T, want simulator", act)
	}
	if _, err := newMeter(cfg, act); err != nil {
		t.Errorf("sim meter: %v", err)
	}

	gpioCfg, err := config.Parse([]byte(`
controller:
  type: gpio
  mock_gpio: true
axis1_stepper: {step_pin: 17, dir_pin: 27}
axis2_stepper: {step_pin: 22, dir_pin: 23}
`))
	if err != nil {
		t.Fatal(err)
	}
	stage, err := newActuator(gpioCfg)
	if err != nil {
		t.Fatal(err)
	}
	defer stage.Close()
	if _, err := newMeter(cfg, stage); err == nil {
		t.Error("sim meter on a GPIO stage should be refused")
	}
}

// ---------- one-shot run ----------

func TestRunOnceSavesResults(t *testing.T) {
	dir := t.TempDir()
	// 64 steps per cell; cell (0,0) is 96 steps before home, so the centre cell sits at -32.
	cfg, err := config.Parse([]byte(`
controller: {type: sim}
meter:
  type: sim
  sim: {peak_axis1: -32, peak_axis2: -32, sigma: 300, amplitude: 10}
scan: {rows: 3, cols: 3, grid_step: 4, step_unit: 0.0625, dwell_ms: 1, zoom_dwell_ms: 1}
output: {prefix: "t"}
`))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Output.Dir = dir

	act, err := newActuator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	m, err := newMeter(cfg, act)
	if err != nil {
		t.Fatal(err)
	}
	svc := newService(cfg, scan.NewSession(motion.NewController(act), m))

	if err := runOnce(context.Background(), svc, cfg.ScanParams(), []int{2}, 0); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	snap := svc.Snapshot()
	if snap.State != scan.StateComplete {
		t.Errorf("state = %v", snap.State)
	}
	if snap.Max == nil || snap.Max.Index != 5 {
		t.Errorf("max = %+v, want the centre point 5", snap.Max)
	}
	if snap.Zoom == nil || !snap.Zoom.Complete {
		t.Error("zoom scan missing")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 9 {
		t.Errorf("wrote %d files, want 9", len(entries))
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "t_") {
			t.Errorf("unexpected file %s", filepath.Base(e.Name()))
		}
	}
}

func TestJogUsesConfiguredGridBeforeFirstScan(t *testing.T) {
	cfg, err := config.Parse([]byte("controller: {type: sim}\nscan: {grid_step: 4, step_unit: 0.0625}\n"))
	if err != nil {
		t.Fatal(err)
	}
	sim := actuator.NewSimulator()
	svc := newService(cfg, scan.NewSession(motion.NewController(sim), nil))

	if err := svc.JogAxis(actuator.Axis1, 2); err != nil {
		t.Fatal(err)
	}
	if got := sim.Position(actuator.Axis1); got != 128 {
		t.Errorf("axis 1 at %d, want 128", got)
	}
}
