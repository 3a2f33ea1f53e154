package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/export"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/meter"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Backend runs positioner operations for the handlers. Blocking operations
// take a context that POST /cancel cancels.
type Backend interface {
	Run(ctx context.Context, p scan.Params) error
	Resume(ctx context.Context) error
	Zoom(ctx context.Context, index int) error
	Correct(ctx context.Context, index int) (float64, error)
	MoveAxis(axis actuator.Axis, steps int) error
	JogAxis(axis actuator.Axis, cells int) error
	Home() error
	Export() ([]string, error)
	Snapshot() scan.Snapshot
}

// Overrides holds the scan form. Zero fields keep the configured default.
type Overrides struct {
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	GridStep    float64 `json:"grid_step"`
	Rows        int     `json:"rows"`
	Cols        int     `json:"cols"`
	DwellMs     int     `json:"dwell_ms"`
	ZoomDwellMs int     `json:"zoom_dwell_ms"`
	StartIndex  int     `json:"start_index"`
	AutoZoom    bool    `json:"auto_zoom"`
	Comment     string  `json:"comment"`

	Tag *meter.Tag `json:"tag,omitempty"`
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ValidateOverrides rejects form values that can never describe a scan.
func ValidateOverrides(o Overrides) error {
	for name, v := range map[string]float64{"width": o.Width, "height": o.Height, "grid_step": o.GridStep} {
		if !finite(v) || v < 0 {
			return fmt.Errorf("%s must be a positive number", name)
		}
		if v > 1000 {
			return fmt.Errorf("%s must be at most 1000", name)
		}
	}
	if o.Rows < 0 || o.Cols < 0 || o.Rows > 500 || o.Cols > 500 {
		return errors.New("rows and cols must be between 0 and 500")
	}
	if (o.Rows == 0) != (o.Cols == 0) {
		return errors.New("rows and cols must be given together")
	}
	const maxDwellMs = 10 * 60 * 1000
	if o.DwellMs < 0 || o.DwellMs > maxDwellMs || o.ZoomDwellMs < 0 || o.ZoomDwellMs > maxDwellMs {
		return errors.New("dwell times must be between 0 and 10 minutes")
	}
	if o.StartIndex < 0 {
		return errors.New("start_index must not be negative")
	}
	return nil
}

// Apply returns base with the non-zero overrides applied.
func (o Overrides) Apply(base scan.Params) scan.Params {
	p := base
	if o.Rows > 0 {
		p.Rows, p.Cols = o.Rows, o.Cols
	} else if o.Width > 0 || o.Height > 0 {
		p.Rows, p.Cols = 0, 0
	}
	if o.Width > 0 {
		p.Width = o.Width
	}
	if o.Height > 0 {
		p.Height = o.Height
	}
	if o.GridStep > 0 {
		p.GridStep = o.GridStep
	}
	if o.DwellMs > 0 {
		p.Dwell = time.Duration(o.DwellMs) * time.Millisecond
	}
	if o.ZoomDwellMs > 0 {
		p.ZoomDwell = time.Duration(o.ZoomDwellMs) * time.Millisecond
	}
	p.StartIndex = o.StartIndex
	p.Comment = o.Comment
	if o.Tag != nil {
		p.Tag = *o.Tag
	}
	return p
}

// FormConfig holds the defaults shown in the scan form.
type FormConfig struct {
	Params   scan.Params `json:"params"`
	AutoZoom bool        `json:"auto_zoom"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	Backend      Backend
	FormDefaults FormConfig
	// MinInterval is the shortest time between two scan starts.
	MinInterval time.Duration

	mu        sync.Mutex
	running   string
	cancel    context.CancelFunc
	lastStart time.Time
	staticFS  fs.FS
}

// NewHandlers creates handlers. A nil backend answers 503 to every command.
func NewHandlers(broadcaster *StatusBroadcaster, backend Backend, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		Backend:      backend,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decode reads an optional JSON body into v. An empty body leaves v unchanged.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// errorStatus maps operation errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, scan.ErrNoScan), errors.Is(err, scan.ErrPositionLost):
		return http.StatusPreconditionFailed
	case errors.Is(err, export.ErrNothingToSave):
		return http.StatusPreconditionFailed
	case scan.IsKind(err, scan.KindInvalidTarget), scan.IsKind(err, scan.KindConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, actuator.ErrInvalidAxis):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// start runs job in the background under name. Only one job runs at a time.
func (h *Handlers) start(w http.ResponseWriter, name string, limited bool, job func(ctx context.Context) error) {
	if h.Backend == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}

	h.mu.Lock()
	if h.running != "" {
		running := h.running
		h.mu.Unlock()
		http.Error(w, running+" already in progress", http.StatusConflict)
		return
	}
	if limited && h.MinInterval > 0 && !h.lastStart.IsZero() && time.Since(h.lastStart) < h.MinInterval {
		h.mu.Unlock()
		http.Error(w, "too many requests, wait before starting another scan", http.StatusTooManyRequests)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.running = name
	h.cancel = cancel
	if limited {
		h.lastStart = time.Now()
	}
	h.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			h.mu.Lock()
			h.running = ""
			h.cancel = nil
			h.mu.Unlock()
		}()

		if err := job(ctx); err != nil {
			if scan.Cancelled(err) {
				h.Broadcaster.Broadcast("info", name+" cancelled")
				return
			}
			h.Broadcaster.Broadcast("error", name+" failed: "+err.Error())
			log.Printf("%s failed: %v", name, err)
			return
		}
		h.Broadcaster.Broadcast("info", name+" complete")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "operation": name})
}

// HandleScan handles POST /scan: an area scan with the form overrides.
func (h *Handlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var o Overrides
	if err := decode(w, r, &o); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := ValidateOverrides(o); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p := o.Apply(h.FormDefaults.Params)
	if _, err := p.Plan(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	autoZoom := o.AutoZoom || h.FormDefaults.AutoZoom
	h.start(w, "scan", true, func(ctx context.Context) error {
		if err := h.Backend.Run(ctx, p); err != nil {
			return err
		}
		if autoZoom {
			return h.Backend.Zoom(ctx, 0)
		}
		return nil
	})
}

// HandleResume handles POST /scan/resume.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.start(w, "resume", false, func(ctx context.Context) error {
		return h.Backend.Resume(ctx)
	})
}

// PointRequest selects an area point by traversal index. Index 0 selects
// the maximum for zoom.
type PointRequest struct {
	Index int `json:"index"`
}

// HandleZoom handles POST /zoom.
func (h *Handlers) HandleZoom(w http.ResponseWriter, r *http.Request) {
	var req PointRequest
	if err := decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Index < 0 {
		http.Error(w, "index must not be negative", http.StatusBadRequest)
		return
	}
	h.start(w, "zoom", false, func(ctx context.Context) error {
		return h.Backend.Zoom(ctx, req.Index)
	})
}

// HandleCorrect handles POST /correct.
func (h *Handlers) HandleCorrect(w http.ResponseWriter, r *http.Request) {
	var req PointRequest
	if err := decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Index < 1 {
		http.Error(w, "index must be at least 1", http.StatusBadRequest)
		return
	}
	h.start(w, "correction", false, func(ctx context.Context) error {
		v, err := h.Backend.Correct(ctx, req.Index)
		if err == nil {
			h.Broadcaster.Broadcast("info", fmt.Sprintf("Point %d corrected to %.4f", req.Index, v))
		}
		return err
	})
}

// MoveRequest moves one axis, by grid cells when Cells is set, else by raw steps.
type MoveRequest struct {
	Axis  int `json:"axis"`
	Steps int `json:"steps"`
	Cells int `json:"cells"`
}

// HandleMove handles POST /move. It answers when the move is done.
func (h *Handlers) HandleMove(w http.ResponseWriter, r *http.Request) {
	if h.Backend == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}
	var req MoveRequest
	if err := decode(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	axis := actuator.Axis(req.Axis)
	if !axis.Valid() {
		http.Error(w, "axis must be 1 or 2", http.StatusBadRequest)
		return
	}
	if (req.Steps == 0) == (req.Cells == 0) {
		http.Error(w, "give exactly one of steps or cells", http.StatusBadRequest)
		return
	}

	var err error
	if req.Cells != 0 {
		err = h.Backend.JogAxis(axis, req.Cells)
	} else {
		err = h.Backend.MoveAxis(axis, req.Steps)
	}
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

// HandleHome handles POST /home.
func (h *Handlers) HandleHome(w http.ResponseWriter, r *http.Request) {
	if h.Backend == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.Backend.Home(); err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "homed"})
}

// HandleCancel handles POST /cancel. The running operation stops at the
// next point and can be resumed.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	running, cancel := h.running, h.cancel
	h.mu.Unlock()
	if cancel == nil {
		http.Error(w, "nothing running", http.StatusConflict)
		return
	}
	cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "operation": running})
}

// HandleExport handles POST /export.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	if h.Backend == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}
	files, err := h.Backend.Export()
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// HandleResults handles GET /results.
func (h *Handlers) HandleResults(w http.ResponseWriter, r *http.Request) {
	if h.Backend == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, NewResultsView(h.Backend.Snapshot()))
}

// HandleHeatmap handles GET /results/heatmap[?kind=zoom].
func (h *Handlers) HandleHeatmap(w http.ResponseWriter, r *http.Request) {
	if h.Backend == nil {
		http.Error(w, "positioner not configured", http.StatusServiceUnavailable)
		return
	}
	snap := h.Backend.Snapshot()
	title, values := "Area scan", snap.Values
	if r.URL.Query().Get("kind") == "zoom" {
		if snap.Zoom == nil {
			http.Error(w, "no zoom scan", http.StatusNotFound)
			return
		}
		title = fmt.Sprintf("Zoom scan around point %d", snap.Zoom.TargetIndex)
		values = snap.Zoom.Values
	}
	if len(values) == 0 {
		http.Error(w, "no scan results", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := export.RenderHeatmapHTML(&buf, title, values); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// HandleConfig returns the form defaults as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
