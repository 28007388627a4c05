package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/jarvis/internal/config"
	"github.com/antoniostano/jarvis/internal/journal"
	"github.com/antoniostano/jarvis/internal/observability"
	"github.com/antoniostano/jarvis/internal/pipeline"
	"github.com/antoniostano/jarvis/internal/session"
	"github.com/antoniostano/jarvis/internal/synthesis"
)

const serviceName = "Jarvis AI Assistant API"

type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any) error
	Execute(ctx context.Context, text string) pipeline.Answer
}

// VoiceLister lists the voices of the synthesis backend.
type VoiceLister interface {
	Voices(ctx context.Context) ([]synthesis.Voice, error)
}

// Synthesizer renders preview audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) []byte
}

// Deps are the optional collaborators of a Server.
type Deps struct {
	Orchestrator Orchestrator
	Metrics      *observability.Metrics
	Journal      journal.Store
	Voices       VoiceLister
	Synthesizer  Synthesizer
	Logger       *slog.Logger
	Version      string
}

type Server struct {
	cfg          config.Config
	sessions     *session.Registry
	orchestrator Orchestrator
	metrics      *observability.Metrics
	journal      journal.Store
	voices       VoiceLister
	synth        Synthesizer
	logger       *slog.Logger
	version      string
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Registry, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: deps.Orchestrator,
		metrics:      deps.Metrics,
		journal:      deps.Journal,
		voices:       deps.Voices,
		synth:        deps.Synthesizer,
		logger:       deps.Logger,
		version:      deps.Version,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/ws/{client_id}", s.handleSessionWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/command", s.handleCommand)
		r.Get("/setup/status", s.handleSetupStatus)
		r.Get("/perf/latency", s.handlePerfLatency)
		r.Get("/voices", s.handleListVoices)
		r.Post("/tts/preview", s.handlePreviewTTS)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}/journal", s.handleSessionJournal)
	})
	return r
}

type rootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, rootResponse{Service: serviceName, Version: s.version, Status: "operational"})
}

type healthResponse struct {
	Status            string   `json:"status"`
	Timestamp         string   `json:"timestamp"`
	APIKeysConfigured bool     `json:"api_keys_configured"`
	MissingKeys       []string `json:"missing_keys"`
	ActiveSessions    int      `json:"active_sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ok, missing := s.cfg.ValidateAPIKeys()
	status := "healthy"
	if !ok {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, healthResponse{
		Status:            status,
		Timestamp:         time.Now().Format(time.RFC3339Nano),
		APIKeysConfigured: ok,
		MissingKeys:       missing,
		ActiveSessions:    s.sessions.ActiveCount(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleSessionJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "journal not configured")
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit <= 0 || limit > 500 {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be in 1..500")
		return
	}
	entries, err := s.journal.Recent(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal_failed", err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) sessionEvent(name string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionEvents.WithLabelValues(name).Inc()
}

func (s *Server) wsMessage(direction, typ string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, typ).Inc()
}

func (s *Server) refreshActiveSessions() {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
