package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/c4"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/meter"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/serialport"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/stepper"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 * 1024

// Controller types.
const (
	ControllerC4   = "c4"
	ControllerGPIO = "gpio"
	ControllerSim  = "sim"
)

// Meter types.
const (
	MeterSerial = "serial"
	MeterManual = "manual"
	MeterSim    = "sim"
)

// StepperConfig holds the configuration for a stepper motor.
type StepperConfig struct {
	StepPin       int `yaml:"step_pin"`
	DirPin        int `yaml:"dir_pin"`
	EnablePin     int `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int `yaml:"steps_per_rev"`
	Microstepping int `yaml:"microstepping"`
}

// ControllerConfig selects and configures the motor controller.
type ControllerConfig struct {
	Type string `yaml:"type"` // c4, gpio or sim

	// c4
	Port          string             `yaml:"port"`  // empty = probe Ports
	Ports         []string           `yaml:"ports"` // candidates, empty = all serial ports
	Serial        serialport.Options `yaml:"serial"`
	AckTimeoutMs  int                `yaml:"ack_timeout_ms"`
	HomeTimeoutMs int                `yaml:"home_timeout_ms"`
	HomeAxis1     int                `yaml:"home_axis1"` // home offsets written before homing
	HomeAxis2     int                `yaml:"home_axis2"`

	// gpio
	MockGPIO    bool `yaml:"mock_gpio"`     // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	StepDelayUs int  `yaml:"step_delay_us"` // half period of a STEP pulse

	// sim
	SimLatencyMs int `yaml:"sim_latency_ms"`
}

// SimMeterConfig places the hot spot of the simulated meter.
type SimMeterConfig struct {
	PeakAxis1 int     `yaml:"peak_axis1"`
	PeakAxis2 int     `yaml:"peak_axis2"`
	Sigma     float64 `yaml:"sigma"`
	Amplitude float64 `yaml:"amplitude"`
	Floor     float64 `yaml:"floor"`
}

// MeterConfig selects and configures the measuring instrument.
type MeterConfig struct {
	Type      string             `yaml:"type"` // serial, manual or sim
	Port      string             `yaml:"port"`
	Serial    serialport.Options `yaml:"serial"`
	Query     string             `yaml:"query"`
	TimeoutMs int                `yaml:"timeout_ms"`
	Sim       SimMeterConfig     `yaml:"sim"`
}

// ScanConfig holds the default area scan.
type ScanConfig struct {
	Width        float64   `yaml:"width"`  // along axis 1, cm
	Height       float64   `yaml:"height"` // along axis 2, cm
	GridStep     float64   `yaml:"grid_step"`
	StepUnit     float64   `yaml:"step_unit"` // cm per motor step
	Rows         int       `yaml:"rows"`
	Cols         int       `yaml:"cols"`
	DwellMs      int       `yaml:"dwell_ms"`
	ZoomDwellMs  int       `yaml:"zoom_dwell_ms"`
	QuietMeasure bool      `yaml:"quiet_measure"`
	AutoZoom     bool      `yaml:"auto_zoom"` // zoom on the maximum after an area scan
	Tag          meter.Tag `yaml:"tag"`
}

// OutputConfig says where results go.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Prefix   string `yaml:"prefix"`
	Database string `yaml:"database"` // scan history, empty = disabled
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Controller   ControllerConfig `yaml:"controller"`
	Axis1Stepper StepperConfig    `yaml:"axis1_stepper"`
	Axis2Stepper StepperConfig    `yaml:"axis2_stepper"`
	Meter        MeterConfig      `yaml:"meter"`
	Scan         ScanConfig       `yaml:"scan"`
	Output       OutputConfig     `yaml:"output"`
	Defaults     DefaultsConfig   `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files directly inside a "configs"
// directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain ..", path)
		}
	}
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration with defaults applied.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Controller.Type == "" {
		c.Controller.Type = ControllerC4
	}
	if c.Controller.AckTimeoutMs <= 0 {
		c.Controller.AckTimeoutMs = 30000
	}
	if c.Controller.HomeTimeoutMs <= 0 {
		c.Controller.HomeTimeoutMs = 120000
	}
	if c.Controller.HomeAxis1 == 0 {
		c.Controller.HomeAxis1 = c4.DefaultHome1
	}
	if c.Controller.HomeAxis2 == 0 {
		c.Controller.HomeAxis2 = c4.DefaultHome2
	}
	if c.Controller.StepDelayUs <= 0 {
		c.Controller.StepDelayUs = 1000
	}
	if c.Meter.Type == "" {
		c.Meter.Type = MeterManual
	}
	if c.Meter.Query == "" {
		c.Meter.Query = "MEAS?\r\n"
	}
	if c.Meter.TimeoutMs <= 0 {
		c.Meter.TimeoutMs = 5000
	}
	if c.Meter.Sim.Sigma <= 0 {
		c.Meter.Sim.Sigma = 400
	}
	if c.Meter.Sim.Amplitude == 0 {
		c.Meter.Sim.Amplitude = 10
	}

	s := &c.Scan
	if s.StepUnit == 0 {
		s.StepUnit = c4.DefaultStepUnit
	}
	if s.GridStep == 0 {
		s.GridStep = 2.8
	}
	if s.Width == 0 && s.Rows == 0 {
		s.Width = 6 * s.GridStep
	}
	if s.Height == 0 && s.Rows == 0 {
		s.Height = 4 * s.GridStep
	}
	if s.DwellMs <= 0 {
		s.DwellMs = 2000
	}
	if s.ZoomDwellMs <= 0 {
		s.ZoomDwellMs = s.DwellMs
	}
	if s.Tag.Type == "" {
		s.Tag.Type = "Limb"
	}
	if s.Tag.Field == "" {
		s.Tag.Field = "Electric"
	}
	if s.Tag.Side == "" {
		s.Tag.Side = "Front"
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "results"
	}
	if c.Output.Prefix == "" {
		c.Output.Prefix = "raw_values"
	}
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch c.Controller.Type {
	case ControllerC4, ControllerSim:
	case ControllerGPIO:
		for name, st := range map[string]StepperConfig{"axis1_stepper": c.Axis1Stepper, "axis2_stepper": c.Axis2Stepper} {
			if st.StepPin <= 0 || st.DirPin <= 0 {
				return fmt.Errorf("%s.step_pin and dir_pin are required for controller.type gpio", name)
			}
		}
	default:
		return fmt.Errorf("controller.type must be c4, gpio or sim, got %q", c.Controller.Type)
	}
	if _, err := c.Controller.Serial.Normalize(); err != nil {
		return fmt.Errorf("controller.serial: %w", err)
	}

	switch c.Meter.Type {
	case MeterManual, MeterSim:
	case MeterSerial:
		if c.Meter.Port == "" {
			return errors.New("meter.port is required for meter.type serial")
		}
		if _, err := c.Meter.Serial.Normalize(); err != nil {
			return fmt.Errorf("meter.serial: %w", err)
		}
	default:
		return fmt.Errorf("meter.type must be serial, manual or sim, got %q", c.Meter.Type)
	}

	if err := c.ScanParams().Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// ScanParams returns the default area scan.
func (c *Config) ScanParams() scan.Params {
	s := c.Scan
	return scan.Params{
		Width:        s.Width,
		Height:       s.Height,
		GridStep:     s.GridStep,
		StepUnit:     s.StepUnit,
		Rows:         s.Rows,
		Cols:         s.Cols,
		Dwell:        c.Dwell(),
		ZoomDwell:    c.ZoomDwell(),
		Tag:          s.Tag,
		QuietMeasure: s.QuietMeasure,
	}
}

// Dwell returns the settle time before an area measurement.
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.Scan.DwellMs) * time.Millisecond
}

// ZoomDwell returns the settle time before a zoom measurement.
func (c *Config) ZoomDwell() time.Duration {
	return time.Duration(c.Scan.ZoomDwellMs) * time.Millisecond
}

// StepUnit returns the travel per motor step.
func (c *Config) StepUnit() float64 {
	return c.Scan.StepUnit
}

// C4 returns the C4 controller settings.
func (c *Config) C4() c4.Config {
	return c4.Config{
		AckTimeout:  time.Duration(c.Controller.AckTimeoutMs) * time.Millisecond,
		HomeTimeout: time.Duration(c.Controller.HomeTimeoutMs) * time.Millisecond,
		Home1:       c.Controller.HomeAxis1,
		Home2:       c.Controller.HomeAxis2,
	}
}

// Stepper returns the GPIO stepper settings of one axis.
func (c *Config) Stepper(st StepperConfig) stepper.Config {
	return stepper.Config{
		StepPin:       st.StepPin,
		DirPin:        st.DirPin,
		EnablePin:     st.EnablePin,
		StepsPerRev:   st.StepsPerRev,
		Microstepping: st.Microstepping,
		StepDelay:     time.Duration(c.Controller.StepDelayUs) * time.Microsecond,
	}
}

// SimLatency returns the artificial delay of the simulated controller.
func (c *Config) SimLatency() time.Duration {
	return time.Duration(c.Controller.SimLatencyMs) * time.Millisecond
}

// MeterSerial returns the serial meter settings.
func (c *Config) MeterSerial() meter.SerialConfig {
	return meter.SerialConfig{
		Query:   c.Meter.Query,
		Timeout: time.Duration(c.Meter.TimeoutMs) * time.Millisecond,
	}
}
