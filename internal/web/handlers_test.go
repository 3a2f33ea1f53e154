package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/hw/actuator"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/geometry"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// ---------- ValidateOverrides ----------

func TestValidateOverrides_Valid(t *testing.T) {
	cases := []struct {
		name string
		o    Overrides
	}{
		{"all_defaults", Overrides{}},
		{"area", Overrides{Width: 16.8, Height: 11.2, GridStep: 2.8}},
		{"grid", Overrides{Rows: 3, Cols: 4}},
		{"dwell", Overrides{DwellMs: 1500, ZoomDwellMs: 500}},
		{"start_index", Overrides{StartIndex: 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateOverrides(tc.o); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateOverrides_Invalid(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	cases := []struct {
		name string
		o    Overrides
	}{
		{"width_NaN", Overrides{Width: nan}},
		{"height_+Inf", Overrides{Height: inf}},
		{"grid_step_-Inf", Overrides{GridStep: math.Inf(-1)}},
		{"width_negative", Overrides{Width: -1}},
		{"grid_step_too_large", Overrides{GridStep: 1001}},
		{"rows_without_cols", Overrides{Rows: 3}},
		{"negative_cols", Overrides{Rows: 3, Cols: -3}},
		{"dwell_negative", Overrides{DwellMs: -1}},
		{"dwell_too_long", Overrides{ZoomDwellMs: 11 * 60 * 1000}},
		{"start_index_negative", Overrides{StartIndex: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateOverrides(tc.o); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestOverridesApply(t *testing.T) {
	base := scan.Params{Rows: 2, Cols: 2, GridStep: 2.8, StepUnit: 0.00508, Dwell: time.Second}

	p := Overrides{Width: 5.6, Height: 2.8}.Apply(base)
	if p.Rows != 0 || p.Cols != 0 || p.Width != 5.6 || p.Height != 2.8 {
		t.Errorf("area override: %+v", p)
	}
	if p.Dwell != time.Second || p.GridStep != 2.8 {
		t.Errorf("defaults lost: %+v", p)
	}

	p = Overrides{Rows: 4, Cols: 5, DwellMs: 250, Comment: "left side"}.Apply(base)
	if p.Rows != 4 || p.Cols != 5 || p.Dwell != 250*time.Millisecond || p.Comment != "left side" {
		t.Errorf("grid override: %+v", p)
	}
}

// ---------- Fake backend ----------

type fakeBackend struct {
	mu      sync.Mutex
	calls   []string
	runs    []scan.Params
	block   chan struct{} // Run waits on it when set
	started chan struct{}
	err     error
	snap    scan.Snapshot
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Run(ctx context.Context, p scan.Params) error {
	f.mu.Lock()
	f.runs = append(f.runs, p)
	f.mu.Unlock()
	f.record("run")
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return &scan.Error{Kind: scan.KindInterrupted, Op: "scan", Err: ctx.Err()}
		}
	}
	return f.err
}

func (f *fakeBackend) Resume(ctx context.Context) error { f.record("resume"); return f.err }
func (f *fakeBackend) Zoom(ctx context.Context, index int) error {
	f.record("zoom")
	return f.err
}
func (f *fakeBackend) Correct(ctx context.Context, index int) (float64, error) {
	f.record("correct")
	return 1.5, f.err
}
func (f *fakeBackend) MoveAxis(axis actuator.Axis, steps int) error {
	f.record("move")
	return f.err
}
func (f *fakeBackend) JogAxis(axis actuator.Axis, cells int) error {
	f.record("jog")
	return f.err
}
func (f *fakeBackend) Home() error               { f.record("home"); return f.err }
func (f *fakeBackend) Export() ([]string, error) { f.record("export"); return []string{"a.txt"}, f.err }
func (f *fakeBackend) Snapshot() scan.Snapshot   { return f.snap }

// ---------- Handler helpers ----------

func newTestHandlers(backend Backend) *Handlers {
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	return NewHandlers(
		NewStatusBroadcaster(),
		backend,
		FormConfig{Params: scan.Params{
			Width: 5.6, Height: 2.8, GridStep: 2.8, StepUnit: 0.00508, Dwell: 2 * time.Second,
		}},
		staticFS,
	)
}

func serve(h *Handlers, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

// waitIdle waits until no background job is running.
func waitIdle(t *testing.T, h *Handlers) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		running := h.running
		h.mu.Unlock()
		if running == "" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job still running")
}

// ---------- POST /scan ----------

func TestHandleScan_ValidPost(t *testing.T) {
	f := &fakeBackend{}
	h := newTestHandlers(f)
	w := serve(h, http.MethodPost, "/scan", `{"dwell_ms": 500, "comment": "first"}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusAccepted, w.Body)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "started" || resp["operation"] != "scan" {
		t.Errorf("response = %v", resp)
	}

	waitIdle(t, h)
	if len(f.runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(f.runs))
	}
	p := f.runs[0]
	if p.Dwell != 500*time.Millisecond || p.Width != 5.6 || p.Comment != "first" {
		t.Errorf("params = %+v", p)
	}
}

func TestHandleScan_AutoZoom(t *testing.T) {
	f := &fakeBackend{}
	h := newTestHandlers(f)
	w := serve(h, http.MethodPost, "/scan", `{"auto_zoom": true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	waitIdle(t, h)
	got := f.Calls()
	if len(got) != 2 || got[0] != "run" || got[1] != "zoom" {
		t.Errorf("calls = %v, want [run zoom]", got)
	}
}

func TestHandleScan_GetMethodNotAllowed(t *testing.T) {
	h := newTestHandlers(&fakeBackend{})
	w := serve(h, http.MethodGet, "/scan", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleScan_BadRequests(t *testing.T) {
	cases := map[string]string{
		"invalid_json":   "not json",
		"bad_override":   `{"width": -1}`,
		"does_not_plan":  `{"start_index": 1000}`,
		"oversized_body": strings.Repeat("x", 2<<20),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h := newTestHandlers(&fakeBackend{})
			w := serve(h, http.MethodPost, "/scan", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleScan_NilBackend(t *testing.T) {
	h := newTestHandlers(nil)
	w := serve(h, http.MethodPost, "/scan", `{}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleScan_ConcurrentAndCancel(t *testing.T) {
	f := &fakeBackend{block: make(chan struct{}), started: make(chan struct{})}
	h := newTestHandlers(f)

	if w := serve(h, http.MethodPost, "/scan", `{}`); w.Code != http.StatusAccepted {
		t.Fatalf("first request: status = %d", w.Code)
	}
	<-f.started

	if w := serve(h, http.MethodPost, "/zoom", `{"index": 0}`); w.Code != http.StatusConflict {
		t.Errorf("concurrent request: status = %d, want %d", w.Code, http.StatusConflict)
	}

	if w := serve(h, http.MethodPost, "/cancel", ""); w.Code != http.StatusAccepted {
		t.Errorf("cancel: status = %d, want %d", w.Code, http.StatusAccepted)
	}
	waitIdle(t, h)

	if w := serve(h, http.MethodPost, "/cancel", ""); w.Code != http.StatusConflict {
		t.Errorf("cancel while idle: status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestHandleScan_RateLimiting(t *testing.T) {
	h := newTestHandlers(&fakeBackend{})
	h.MinInterval = time.Minute

	if w := serve(h, http.MethodPost, "/scan", `{}`); w.Code != http.StatusAccepted {
		t.Fatalf("first request: status = %d", w.Code)
	}
	waitIdle(t, h)

	if w := serve(h, http.MethodPost, "/scan", `{}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("rate-limited request: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	// Other operations are not limited.
	if w := serve(h, http.MethodPost, "/scan/resume", ""); w.Code != http.StatusAccepted {
		t.Errorf("resume: status = %d, want %d", w.Code, http.StatusAccepted)
	}
	waitIdle(t, h)
}

func TestHandleScan_FailureIsBroadcast(t *testing.T) {
	f := &fakeBackend{err: errors.New("no C4 answered")}
	h := newTestHandlers(f)
	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	serve(h, http.MethodPost, "/scan", `{}`)
	evt := receive(t, ch)
	if evt.Level != "error" || !strings.Contains(evt.Msg, "no C4 answered") {
		t.Errorf("event = %+v", evt)
	}
	waitIdle(t, h)
}

// ---------- point operations ----------

func TestHandlePointOperations(t *testing.T) {
	cases := []struct {
		path string
		body string
		code int
		call string
	}{
		{"/zoom", "", http.StatusAccepted, "zoom"},
		{"/zoom", `{"index": 4}`, http.StatusAccepted, "zoom"},
		{"/zoom", `{"index": -1}`, http.StatusBadRequest, ""},
		{"/correct", `{"index": 3}`, http.StatusAccepted, "correct"},
		{"/correct", `{"index": 0}`, http.StatusBadRequest, ""},
		{"/scan/resume", "", http.StatusAccepted, "resume"},
	}
	for _, tc := range cases {
		t.Run(tc.path+tc.body, func(t *testing.T) {
			f := &fakeBackend{}
			h := newTestHandlers(f)
			w := serve(h, http.MethodPost, tc.path, tc.body)
			if w.Code != tc.code {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.code, w.Body)
			}
			waitIdle(t, h)
			calls := f.Calls()
			if tc.call == "" {
				if len(calls) != 0 {
					t.Errorf("calls = %v, want none", calls)
				}
				return
			}
			if len(calls) != 1 || calls[0] != tc.call {
				t.Errorf("calls = %v, want [%s]", calls, tc.call)
			}
		})
	}
}

// ---------- POST /move, /home, /export ----------

func TestHandleMove(t *testing.T) {
	cases := []struct {
		body string
		code int
		call string
	}{
		{`{"axis": 1, "steps": -200}`, http.StatusOK, "move"},
		{`{"axis": 2, "cells": 1}`, http.StatusOK, "jog"},
		{`{"axis": 3, "steps": 10}`, http.StatusBadRequest, ""},
		{`{"axis": 1}`, http.StatusBadRequest, ""},
		{`{"axis": 1, "steps": 5, "cells": 1}`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			f := &fakeBackend{}
			h := newTestHandlers(f)
			w := serve(h, http.MethodPost, "/move", tc.body)
			if w.Code != tc.code {
				t.Fatalf("status = %d, want %d", w.Code, tc.code)
			}
			calls := f.Calls()
			if tc.call != "" && (len(calls) != 1 || calls[0] != tc.call) {
				t.Errorf("calls = %v, want [%s]", calls, tc.call)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{scan.ErrBusy, http.StatusConflict},
		{scan.ErrNoScan, http.StatusPreconditionFailed},
		{errors.Join(errors.New("move"), scan.ErrPositionLost), http.StatusPreconditionFailed},
		{&scan.Error{Kind: scan.KindInvalidTarget, Op: "zoom"}, http.StatusBadRequest},
		{&scan.Error{Kind: scan.KindTransport, Op: "home"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := errorStatus(tc.err); got != tc.code {
			t.Errorf("errorStatus(%v) = %d, want %d", tc.err, got, tc.code)
		}
	}
}

func TestHandleHomeBusy(t *testing.T) {
	h := newTestHandlers(&fakeBackend{err: scan.ErrBusy})
	w := serve(h, http.MethodPost, "/home", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestHandleExport(t *testing.T) {
	h := newTestHandlers(&fakeBackend{})
	w := serve(h, http.MethodPost, "/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct{ Files []string }
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Files) != 1 || resp.Files[0] != "a.txt" {
		t.Errorf("files = %v", resp.Files)
	}
}

// ---------- GET /results ----------

func testSnapshot() scan.Snapshot {
	return scan.Snapshot{
		State:         scan.StateInterrupted,
		Grid:          [][]int{{1, 2}, {4, 3}},
		Values:        [][]float64{{1.5, 2}, {math.NaN(), math.NaN()}},
		Measured:      2,
		Position:      geometry.Cell{Row: 0, Col: 1},
		PositionKnown: true,
		Max:           &scan.Max{Index: 2, Cell: geometry.Cell{Col: 1}, Value: 2, Name: "L_Efront2"},
		Err:           &scan.Error{Kind: scan.KindInterrupted, Op: "scan", Index: 3},
		Started:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandleResults(t *testing.T) {
	h := newTestHandlers(&fakeBackend{snap: testSnapshot()})
	w := serve(h, http.MethodGet, "/results", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("results are not valid JSON: %v\n%s", err, w.Body)
	}
	if got["state"] != "interrupted" {
		t.Errorf("state = %v", got["state"])
	}
	values := got["values"].([]interface{})
	row1 := values[1].([]interface{})
	if row1[0] != nil || row1[1] != nil {
		t.Errorf("unmeasured values = %v, want null", row1)
	}
	if values[0].([]interface{})[0] != 1.5 {
		t.Errorf("values[0][0] = %v", values[0])
	}
	pos := got["position"].(map[string]interface{})
	if pos["row"] != 1.0 || pos["col"] != 2.0 {
		t.Errorf("position = %v", pos)
	}
	if _, ok := got["finished"]; ok {
		t.Error("zero finish time should be omitted")
	}
	if !strings.Contains(got["error"].(string), "interrupted") {
		t.Errorf("error = %v", got["error"])
	}
}

func TestHandleHeatmap(t *testing.T) {
	h := newTestHandlers(&fakeBackend{snap: testSnapshot()})
	w := serve(h, http.MethodGet, "/results/heatmap", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "Area scan") {
		t.Error("heat map page lacks its title")
	}

	w = serve(h, http.MethodGet, "/results/heatmap?kind=zoom", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("zoom without zoom scan: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	h = newTestHandlers(&fakeBackend{})
	w = serve(h, http.MethodGet, "/results/heatmap", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("before any scan: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ---------- GET /config, / ----------

func TestHandleConfig(t *testing.T) {
	h := newTestHandlers(&fakeBackend{})
	w := serve(h, http.MethodGet, "/config", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var fc FormConfig
	if err := json.NewDecoder(w.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Params.GridStep != 2.8 || fc.Params.Width != 5.6 {
		t.Errorf("params = %+v", fc.Params)
	}
	if fc.Params.Dwell != 2*time.Second {
		t.Errorf("dwell = %v", fc.Params.Dwell)
	}
}

func TestServeIndex(t *testing.T) {
	h := newTestHandlers(&fakeBackend{})
	w := serve(h, http.MethodGet, "/", "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestEmbeddedIndex(t *testing.T) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("/status/stream")) {
		t.Error("page does not subscribe to the status stream")
	}
}
