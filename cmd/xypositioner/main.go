package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/boboyejj/XY-Positioner-GUI/internal/config"
	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/motion"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
	"github.com/boboyejj/XY-Positioner-GUI/internal/store"
	"github.com/boboyejj/XY-Positioner-GUI/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	width := flag.Float64("width", 0, "override scan width along axis 1 (cm)")
	height := flag.Float64("height", 0, "override scan height along axis 2 (cm)")
	gridStep := flag.Float64("step", 0, "override distance between grid points (cm)")
	dwell := flag.Float64("dwell", 0, "override dwell time at each point (s)")
	start := flag.Int("start", 0, "first point to measure (1-based traversal index)")
	comment := flag.String("comment", "", "comment stored with the results")
	zoom := flag.Int("zoom", -1, "zoom scan after the area scan: 0 = on the maximum, N = on point N, -1 = none")
	correct := flag.String("correct", "", "comma-separated points to re-measure after the scan, e.g. 3,7")
	move := flag.String("move", "", "move one axis by raw steps and exit, e.g. 1:-200")
	home := flag.Bool("home", false, "home the positioner and exit")
	saveDir := flag.String("save-dir", "", "override output directory")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Zero means "use config default".
	if err := validateCLIOverrides(*width, *height, *gridStep, *dwell); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	overrides := cliOverrides(*width, *height, *gridStep, *dwell, *start, *comment)
	if err := web.ValidateOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	if *saveDir != "" {
		cfg.Output.Dir = *saveDir
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Controller", cfg.Controller.Type)
	debug.Value("Meter", cfg.Meter.Type)

	debug.Step(1, "Connecting to the motor controller")
	act, err := newActuator(cfg)
	if err != nil {
		log.Fatalf("init controller failed: %v", err)
	}

	debug.Step(2, "Initializing meter")
	m, err := newMeter(cfg, act)
	if err != nil {
		act.Close()
		log.Fatalf("init meter failed: %v", err)
	}

	debug.Step(3, "Creating scan session")
	sess := scan.NewSession(motion.NewController(act), m)
	defer func() {
		if err := sess.Close(); err != nil {
			log.Printf("closing positioner failed: %v", err)
		}
	}()

	if cfg.Output.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.Database), 0o755); err != nil {
			log.Fatalf("scan history: %v", err)
		}
		db, err := store.Open(cfg.Output.Database)
		if err != nil {
			log.Fatalf("scan history: %v", err)
		}
		defer db.Close()
		sess.AddObserver(store.NewRecorder(db))
	}

	svc := newService(cfg, sess)

	switch {
	case *home:
		if err := svc.Home(); err != nil {
			log.Fatalf("home failed: %v", err)
		}
		return
	case *move != "":
		axis, steps, err := parseMove(*move)
		if err != nil {
			log.Fatalf("invalid -move: %v", err)
		}
		if err := svc.MoveAxis(axis, steps); err != nil {
			log.Fatalf("move failed: %v", err)
		}
		return
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		sess.AddObserver(broadcaster)

		formDefaults := web.FormConfig{
			Params:   overrides.Apply(cfg.ScanParams()),
			AutoZoom: cfg.Scan.AutoZoom,
		}
		srv := web.NewServer(webAddr, broadcaster, svc, formDefaults)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	points, err := parsePoints(*correct)
	if err != nil {
		log.Fatalf("invalid -correct: %v", err)
	}
	zoomAt := *zoom
	if zoomAt < 0 && cfg.Scan.AutoZoom {
		zoomAt = 0
	}
	if err := runOnce(ctx, svc, overrides.Apply(cfg.ScanParams()), points, zoomAt); err != nil {
		log.Fatalf("scan failed: %v", err)
	}
}

// runOnce runs one area scan, the requested corrections and zoom, and saves
// whatever was measured, even when a step failed.
func runOnce(ctx context.Context, svc *service, p scan.Params, correct []int, zoomAt int) error {
	err := svc.Run(ctx, p)
	if err == nil {
		for _, idx := range correct {
			if _, err = svc.Correct(ctx, idx); err != nil {
				break
			}
		}
	}
	if err == nil && zoomAt >= 0 {
		err = svc.Zoom(ctx, zoomAt)
	}

	files, saveErr := svc.Export()
	if saveErr != nil {
		debug.Error(saveErr)
	} else {
		debug.Info("Saved %d files", len(files))
	}

	snap := svc.Snapshot()
	debug.Summary("Scan " + snap.State.String())
	if snap.Max != nil {
		debug.Info("Maximum %.4f at point %d (%s)", snap.Max.Value, snap.Max.Index, snap.Max.Name)
	}
	if err != nil {
		return err
	}
	return saveErr
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(width, height, gridStep, dwell float64) error {
	check := func(name string, v, max float64) error {
		if v == 0 {
			return nil
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > max {
			return fmt.Errorf("%s must be between 0 and %g, got %g", name, max, v)
		}
		return nil
	}
	if err := check("width", width, 1000); err != nil {
		return err
	}
	if err := check("height", height, 1000); err != nil {
		return err
	}
	if err := check("step", gridStep, 1000); err != nil {
		return err
	}
	return check("dwell", dwell, 600)
}

// cliOverrides builds the same overrides the scan form sends.
func cliOverrides(width, height, gridStep, dwell float64, start int, comment string) web.Overrides {
	return web.Overrides{
		Width:      width,
		Height:     height,
		GridStep:   gridStep,
		DwellMs:    int(math.Round(dwell * 1000)),
		StartIndex: start,
		Comment:    comment,
	}
}

// parseMove parses "axis:steps", e.g. "2:-150".
func parseMove(s string) (actuator.Axis, int, error) {
	a, n, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("want axis:steps, got %q", s)
	}
	ai, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("axis: %w", err)
	}
	axis := actuator.Axis(ai)
	if !axis.Valid() {
		return 0, 0, fmt.Errorf("axis must be 1 or 2, got %d", ai)
	}
	steps, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return 0, 0, fmt.Errorf("steps: %w", err)
	}
	return axis, steps, nil
}

// parsePoints parses a comma-separated list of 1-based point indices.
func parsePoints(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("point %d: indices start at 1", n)
		}
		out = append(out, n)
	}
	return out, nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
