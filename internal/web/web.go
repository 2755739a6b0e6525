package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"gymcal/internal/config"
	appLog "gymcal/internal/log"
	"gymcal/internal/planner"
	"gymcal/internal/store"
)

// Server exposes the planner over HTTP: a JSON API, an iCalendar feed and
// a server-rendered agenda page.
type Server struct {
	cfg      *config.Config
	planner  *planner.Service
	validate *validator.Validate
	router   chi.Router

	// /api/events responses keyed by store version and window.
	eventsMu    sync.RWMutex
	eventsCache map[eventsKey]eventsEntry
	eventsTTL   time.Duration
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *planner.Service) *Server {
	s := &Server{
		cfg:         cfg,
		planner:     svc,
		validate:    newValidator(),
		eventsCache: make(map[eventsKey]eventsEntry),
		eventsTTL:   30 * time.Second,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/gyms", func(r chi.Router) {
			r.Get("/", s.handleListGyms)
			r.Post("/", s.handleCreateGym)
			r.Get("/{id}", s.handleGetGym)
			r.Put("/{id}", s.handleUpdateGym)
			r.Delete("/{id}", s.handleDeleteGym)
		})
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleCreateGroup)
			r.Get("/{id}", s.handleGetGroup)
			r.Put("/{id}", s.handleUpdateGroup)
			r.Delete("/{id}", s.handleDeleteGroup)
		})
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.handleListMatches)
			r.Post("/", s.handleCreateMatch)
			r.Get("/{id}", s.handleGetMatch)
			r.Put("/{id}", s.handleUpdateMatch)
			r.Delete("/{id}", s.handleDeleteMatch)
		})
		r.Post("/conflicts/schedule", s.handleCheckSchedule)
		r.Post("/conflicts/match", s.handleCheckMatch)

		r.Get("/events", s.handleEvents)
		r.Get("/today", s.handleToday)
		r.Get("/holidays", s.handleHolidays)
		r.Post("/imports/{id}", s.handleImport)
	})

	r.Get("/calendar.ics", s.handleCalendarICS)
	r.Get("/agenda", s.handleAgendaPage)
	r.Get("/preview.png", s.handlePreview)
	return r
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, svc *planner.Service) error {
	s := NewServer(cfg, svc)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials disable it.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="gymcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last agenda capture from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Capture.OutputPath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Conflicts any    `json:"conflicts,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps planner and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var ce *planner.ConflictError
	switch {
	case errors.As(err, &ce):
		var conflicts any = ce.Conflicts
		if ce.ByDay != nil {
			conflicts = ce.ByDay
		}
		writeJSON(w, http.StatusConflict, errorResponse{Error: "scheduling conflict", Conflicts: conflicts})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, planner.ErrUnknownImport):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
