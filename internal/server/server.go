// Package server exposes the read-only status surface: configured
// channels, their online state, and the most recent persisted messages.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/status"
	"github.com/Micjeal/personal-agent/internal/store"
)

const defaultMessageLimit = 50

// Server serves JSON projections over the message store and status
// tracker. It is not part of the routing core.
type Server struct {
	store   *store.Store
	tracker *status.Tracker
	srv     *http.Server
}

// New creates a server listening on the given port (8080 when zero).
func New(st *store.Store, tracker *status.Tracker, port int) *Server {
	if port == 0 {
		port = 8080
	}

	s := &Server{store: st, tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/channels", s.handleChannels)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	slog.Info("Starting status server", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Status server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down status server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.tracker.Channels())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var msgs []message.Message
	if channel := r.URL.Query().Get("channel"); channel != "" {
		msgs = s.store.ByChannel(message.Channel(channel))
		if len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
	} else {
		msgs = s.store.Recent(limit)
	}
	writeJSON(w, msgs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.tracker.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
