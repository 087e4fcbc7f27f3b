// Package server provides the HTTP server of the web UI: JSON API, live
// websocket snapshots, the MJPEG camera stream and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/gestosongs/internal/server/api"
	"github.com/ayusman/gestosongs/internal/store"
)

// shutdownTimeout bounds how long in-flight requests get when the server stops.
const shutdownTimeout = 5 * time.Second

// Config holds the server configuration. Routes whose collaborator is nil
// are not registered.
type Config struct {
	StaticDir string
	Game      api.Game
	Store     *store.Store
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// Server is the HTTP front end of the game.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	live   *LiveHandler
	stream *StreamHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		live:   NewLiveHandler(config.Logger),
		stream: NewStreamHandler(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Game != nil {
		game := api.NewGameHandler(s.config.Game)
		s.mux.HandleFunc("/api/state", game.State)
		s.mux.HandleFunc("/api/mode", game.Mode)
		s.mux.HandleFunc("/api/reset", game.Reset)
		s.mux.HandleFunc("/api/bindings", game.Bindings)
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	s.mux.Handle("/api/live", s.live)
	s.mux.Handle("/api/stream", s.stream)

	if s.config.Gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Live is the websocket hub. Register it as a renderer of the game.
func (s *Server) Live() *LiveHandler {
	return s.live
}

// Stream is the MJPEG hub. Register it as a frame sink of the game.
func (s *Server) Stream() *StreamHandler {
	return s.stream
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"clients": s.live.Clients(),
		"viewers": s.stream.Viewers(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and disconnects live clients.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("web UI listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.live.Close()
	s.stream.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
