package main

import (
	"fmt"
	"os"

	"github.com/boboyejj/XY-Positioner-GUI/internal/config"
	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/c4"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/gpio"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/meter"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/serialport"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/stepper"
)

// newActuator connects the motor controller selected in cfg.
func newActuator(cfg *config.Config) (actuator.Actuator, error) {
	switch cfg.Controller.Type {
	case config.ControllerC4:
		ctrl, err := openC4(cfg, serialport.Open, serialport.List)
		if err != nil {
			return nil, err
		}
		return ctrl, nil

	case config.ControllerGPIO:
		debug.Value("Mock GPIO", cfg.Controller.MockGPIO)
		driver, err := gpio.NewDriver(cfg.Controller.MockGPIO)
		if err != nil {
			return nil, err
		}
		debug.PrintStruct("Axis 1 stepper config", cfg.Axis1Stepper)
		debug.PrintStruct("Axis 2 stepper config", cfg.Axis2Stepper)
		return stepper.NewStage(driver, cfg.Stepper(cfg.Axis1Stepper), cfg.Stepper(cfg.Axis2Stepper)), nil

	case config.ControllerSim:
		sim := actuator.NewSimulator()
		sim.Latency = cfg.SimLatency()
		return sim, nil
	}
	return nil, fmt.Errorf("unsupported controller type: %s", cfg.Controller.Type)
}

// openC4 opens the configured port, or probes the candidates for a C4.
func openC4(cfg *config.Config, open serialport.Opener, list func() ([]string, error)) (*c4.Controller, error) {
	cc := cfg.Controller
	if cc.Port != "" {
		debug.Value("C4 port", cc.Port)
		return c4.Open(open, cc.Port, cc.Serial, cfg.C4())
	}

	ports := cc.Ports
	if len(ports) == 0 {
		var err error
		if ports, err = list(); err != nil {
			return nil, fmt.Errorf("list serial ports: %w", err)
		}
	}
	ctrl, path, err := c4.Discover(open, ports, cc.Serial, cfg.C4())
	if err != nil {
		return nil, err
	}
	debug.Info("C4 controller found on %s", path)
	return ctrl, nil
}

// newMeter opens the instrument selected in cfg. The simulated meter reads
// the position of act, which must then be the simulated controller.
func newMeter(cfg *config.Config, act actuator.Actuator) (meter.Meter, error) {
	switch cfg.Meter.Type {
	case config.MeterSerial:
		port, err := serialport.Open(cfg.Meter.Port, cfg.Meter.Serial)
		if err != nil {
			return nil, fmt.Errorf("open meter port: %w", err)
		}
		debug.Value("Meter port", cfg.Meter.Port)
		return meter.NewSerial(port, cfg.MeterSerial()), nil

	case config.MeterManual:
		return meter.NewManual(os.Stdin, os.Stdout), nil

	case config.MeterSim:
		pos, ok := act.(meter.Positioner)
		if !ok {
			return nil, fmt.Errorf("meter type sim needs controller type sim")
		}
		s := cfg.Meter.Sim
		return &meter.Simulated{
			Stage:     pos,
			PeakAxis1: s.PeakAxis1,
			PeakAxis2: s.PeakAxis2,
			Sigma:     s.Sigma,
			Amplitude: s.Amplitude,
			Floor:     s.Floor,
		}, nil
	}
	return nil, fmt.Errorf("unsupported meter type: %s", cfg.Meter.Type)
}
