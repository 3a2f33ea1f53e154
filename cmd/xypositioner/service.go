package main

import (
	"context"
	"fmt"

	"github.com/boboyejj/XY-Positioner-GUI/internal/config"
	"github.com/boboyejj/XY-Positioner-GUI/internal/export"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// service adapts the scan session to the web backend and the one-shot CLI.
type service struct {
	cfg     *config.Config
	session *scan.Session
}

func newService(cfg *config.Config, s *scan.Session) *service {
	return &service{cfg: cfg, session: s}
}

func (s *service) Run(ctx context.Context, p scan.Params) error {
	return s.session.Run(ctx, p)
}

func (s *service) Resume(ctx context.Context) error {
	return s.session.Resume(ctx)
}

func (s *service) Zoom(ctx context.Context, index int) error {
	_, err := s.session.Zoom(ctx, index)
	return err
}

func (s *service) Correct(ctx context.Context, index int) (float64, error) {
	return s.session.Correct(ctx, index)
}

func (s *service) MoveAxis(axis actuator.Axis, steps int) error {
	return s.session.MoveAxis(axis, steps)
}

// JogAxis moves by grid cells of the last scan, or of the configured scan
// before the first one.
func (s *service) JogAxis(axis actuator.Axis, cells int) error {
	p := s.session.Snapshot().Params
	if p.GridStep <= 0 || p.StepUnit <= 0 {
		p = s.cfg.ScanParams()
	}
	return s.session.JogAxis(axis, cells, p.GridStep, p.StepUnit)
}

func (s *service) Home() error {
	return s.session.Home()
}

// Export saves the current results as <prefix>_<scan id>_*.
func (s *service) Export() ([]string, error) {
	snap := s.session.Snapshot()
	prefix := fmt.Sprintf("%s_%s", s.cfg.Output.Prefix, shortID(snap.ID.String()))
	return export.SaveAll(s.cfg.Output.Dir, prefix, snap)
}

func (s *service) Snapshot() scan.Snapshot {
	return s.session.Snapshot()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
