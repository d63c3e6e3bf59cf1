package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/storage"
)

type EventLister interface {
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
}

type Server struct {
	monitor *Monitor
	events  EventLister
	webhook http.Handler
	server  *http.Server
}

// NewServer exposes the status endpoints. events and webhook are
// optional.
func NewServer(port string, m *Monitor, events EventLister, webhook http.Handler) *Server {
	s := &Server{monitor: m, events: events, webhook: webhook}
	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Get("/status", s.statusHandler)
	r.Get("/events", s.eventsHandler)
	if s.webhook != nil {
		r.Post("/webhook", s.webhook.ServeHTTP)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("status server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- goerr.Wrap(err, "status server failed", goerr.V("addr", s.server.Addr))
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shutdown status server")
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"running":   s.monitor.status.isRunning(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Snapshot())
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event journal disabled"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	entries, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		logging.From(r.Context()).Error("failed to list events", logging.ErrAttr(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
