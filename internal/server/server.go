// Package server provides the optional local status server of a posecam run.
// It never serves frames.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ayusman/posecam/internal/server/api"
	"github.com/ayusman/posecam/internal/store"
)

// Config holds the server configuration.
type Config struct {
	// Session identifies the run in health responses.
	Session string
	// Stats returns a JSON-encodable snapshot for /api/stats.
	Stats func() any
	// Store enables the read-only /api/settings endpoints.
	Store *store.Store

	Logger *zap.SugaredLogger
	Clock  clock.Clock
}

// Server represents the HTTP status server.
type Server struct {
	config    Config
	mux       *http.ServeMux
	start     time.Time
	keypoints *KeypointsHandler
	http      *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	s := &Server{
		config:    config,
		mux:       http.NewServeMux(),
		start:     config.Clock.Now(),
		keypoints: NewKeypointsHandler(config.Logger),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/keypoints", s.keypoints)

	if s.config.Stats != nil {
		s.mux.HandleFunc("/api/stats", s.handleStats)
	}

	if s.config.Store != nil {
		settings := api.NewSettingsHandler(s.config.Store)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Publish broadcasts v to every keypoint feed subscriber.
func (s *Server) Publish(v any) {
	s.keypoints.Publish(v)
}

// Keypoints returns the WebSocket feed handler.
func (s *Server) Keypoints() *KeypointsHandler {
	return s.keypoints
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := s.config.Clock.Since(s.start)

	response := map[string]interface{}{
		"status":  "ok",
		"uptime":  uptime.String(),
		"session": s.config.Session,
	}

	writeJSON(w, response)
}

// handleStats handles GET requests to /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.config.Stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr has port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.config.Logger.Errorw("status server stopped", "error", err)
		}
	}()

	bound := ln.Addr().String()
	s.config.Logger.Infow("status server listening", "addr", bound)
	return bound, nil
}

// Shutdown stops the server and disconnects feed subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.keypoints.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
