package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server for addr driving backend.
func NewServer(addr string, broadcaster *StatusBroadcaster, backend Backend, formDefaults FormConfig) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	handlers := NewHandlers(broadcaster, backend, formDefaults, subFS)
	handlers.MinInterval = 2 * time.Second

	return &Server{
		addr:     addr,
		handlers: handlers,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	return s.handlers.Routes()
}

// Routes registers every endpoint on a new mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /scan", h.HandleScan)
	mux.HandleFunc("POST /scan/resume", h.HandleResume)
	mux.HandleFunc("POST /zoom", h.HandleZoom)
	mux.HandleFunc("POST /correct", h.HandleCorrect)
	mux.HandleFunc("POST /move", h.HandleMove)
	mux.HandleFunc("POST /home", h.HandleHome)
	mux.HandleFunc("POST /cancel", h.HandleCancel)
	mux.HandleFunc("POST /export", h.HandleExport)
	mux.HandleFunc("GET /results", h.HandleResults)
	mux.HandleFunc("GET /results/heatmap", h.HandleHeatmap)
	mux.HandleFunc("GET /config", h.HandleConfig)
	mux.HandleFunc("GET /status/stream", h.HandleStatusStream)
	if h.staticFS != nil {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	}
	mux.HandleFunc("GET /{$}", h.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
