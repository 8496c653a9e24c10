// Package server is the HTTP surface: webhook ingestion, the calendar
// and summary read APIs, the OAuth connect flow, and admin operations.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"coachsync/internal/cache"
	"coachsync/internal/service"
	"coachsync/internal/store"
	"coachsync/internal/summary"
)

// readCacheTTL bounds staleness of the calendar and summary read
// models; a completed sync invalidates the athlete's entries early.
const readCacheTTL = time.Minute

// Server handles all HTTP traffic.
type Server struct {
	db          *store.DB
	sync        *service.SyncService
	query       *service.QueryService
	oauth       *oauth2.Config
	verifyToken string
	logger      *slog.Logger

	calendars *cache.Cache[[]CalendarSlot]
	summaries *cache.Cache[summary.Summary]

	mux *http.ServeMux
}

// New wires the server's routes.
func New(db *store.DB, syncSvc *service.SyncService, querySvc *service.QueryService, oauthCfg *oauth2.Config, verifyToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		db:          db,
		sync:        syncSvc,
		query:       querySvc,
		oauth:       oauthCfg,
		verifyToken: verifyToken,
		logger:      logger,
		calendars:   cache.New[[]CalendarSlot](readCacheTTL),
		summaries:   cache.New[summary.Summary](readCacheTTL),
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /webhook/strava", s.handleWebhookVerify)
	s.mux.HandleFunc("POST /webhook/strava", s.handleWebhookEvent)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("POST /admin/resync", s.handleResync)
	s.mux.HandleFunc("GET /connect", s.handleConnect)
	s.mux.HandleFunc("GET /connect/callback", s.handleConnectCallback)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
