// Package api exposes a read-only local diagnostics HTTP API: current
// readings, calibration, command history, and a websocket live stream.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"enviroagent/internal/calibration"
	"enviroagent/internal/storage"
)

// BusStatus reports transport connectivity for the status endpoint.
type BusStatus interface {
	IsConnected() bool
}

// Server is the diagnostics API server.
type Server struct {
	storage   storage.Storage
	store     *calibration.Store
	bus       BusStatus
	hub       *Hub
	deviceID  string
	version   string
	startTime time.Time
	logger    *log.Logger
}

// NewServer creates a Server.
func NewServer(st storage.Storage, store *calibration.Store, bus BusStatus, deviceID, version string, logger *log.Logger) *Server {
	return &Server{
		storage:   st,
		store:     store,
		bus:       bus,
		hub:       NewHub(logger),
		deviceID:  deviceID,
		version:   version,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Hub returns the websocket hub fed by the poll loop.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/readings", s.handleReadings)
		r.Get("/calibration", s.handleCalibration)
		r.Get("/history", s.handleHistory)
		r.Get("/live", s.hub.HandleWS)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	connected := false
	if s.bus != nil {
		connected = s.bus.IsConnected()
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"device_id":      s.deviceID,
		"version":        s.version,
		"uptime_sec":     int64(time.Since(s.startTime).Seconds()),
		"mqtt_connected": connected,
	})
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}

	var state map[string]interface{}
	err := s.storage.GetStateJSON(&state)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "no readings yet")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	s.respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}

	entries, err := s.storage.GetCommandHistory(50)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if entries == nil {
		entries = []storage.CommandEntry{}
	}

	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.logger != nil {
		s.logger.Printf("[api] Failed to encode response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
