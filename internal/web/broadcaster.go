package web

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// StatusEvent is one message on the status stream.
type StatusEvent struct {
	Time  string      `json:"t"`
	Level string      `json:"l,omitempty"` // info, error, point or state
	Msg   string      `json:"msg"`
	Data  interface{} `json:"data,omitempty"`
}

// PointData is attached to "point" events.
type PointData struct {
	Kind  scan.MeasurementKind `json:"kind"`
	Index int                  `json:"index"`
	Row   int                  `json:"row"` // 1-based
	Col   int                  `json:"col"`
	Value float64              `json:"value"`
}

// StateData is attached to "state" events.
type StateData struct {
	State scan.State `json:"state"`
	Error string     `json:"error,omitempty"`
}

// StatusBroadcaster fans status messages out to SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel of encoded events and its cleanup function,
// to be called when the client goes away.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast sends a message to every client. Slow clients miss messages.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg broadcasts at level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Observe implements scan.Observer so the page can follow a scan live.
func (b *StatusBroadcaster) Observe(e scan.Event) {
	switch e.Type {
	case scan.EventStarted:
		b.send(StatusEvent{
			Level: "state",
			Msg:   fmt.Sprintf("Scan %s started: %d x %d points", e.SessionID, e.Rows, e.Cols),
			Data:  StateData{State: scan.StatePositioning},
		})
	case scan.EventMeasured:
		b.send(StatusEvent{
			Level: "point",
			Msg:   fmt.Sprintf("%s point %d = %.4f", e.Kind, e.Index, e.Value),
			Data: PointData{
				Kind:  e.Kind,
				Index: e.Index,
				Row:   e.Cell.Row + 1,
				Col:   e.Cell.Col + 1,
				Value: e.Value,
			},
		})
	case scan.EventState:
		d := StateData{State: e.State}
		msg := "Scan " + e.State.String()
		if e.Err != nil {
			d.Error = e.Err.Error()
			msg += ": " + d.Error
		}
		b.send(StatusEvent{Level: "state", Msg: msg, Data: d})
	}
}

// BroadcastWriter returns an io.Writer broadcasting each write, for debug.SetOutput.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
