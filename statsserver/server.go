// Package statsserver exposes a running simulation's statistics over
// HTTP as JSON, mirroring the *http.Server wiring the CLI uses for its
// own metrics endpoint.
package statsserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Server serves whatever snapshot was last handed to it via Update,
// guarded by a mutex so a background simulation goroutine can publish
// new stats while HTTP handlers read the current ones concurrently.
type Server struct {
	mu       sync.Mutex
	snapshot any

	httpServer *http.Server
}

// New builds a Server listening on addr. Call Serve to start it.
func New(addr string) *Server {
	s := &Server{}
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/healthz", s.handleHealthz)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Update replaces the snapshot served at /stats. Safe to call from any
// goroutine while Serve is running.
func (s *Server) Update(snapshot any) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snapshot := s.snapshot
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if snapshot == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "no snapshot yet"})
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Addr returns the address this server is configured to listen on.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Serve starts listening in the background. Errors other than a clean
// shutdown are reported through errCh.
func (s *Server) Serve() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown stops the server immediately, closing its listener and any
// open connections.
func (s *Server) Shutdown() error {
	return s.httpServer.Close()
}
