package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/CTAG07/Markiavelli/pkg/markov"
	"github.com/CTAG07/Markiavelli/pkg/templating"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wires the API handlers to a router.
type Server struct {
	app        *app
	tm         *templating.TemplateManager
	metrics    *metrics
	modelsAPI  *ModelsAPI
	composeAPI *ComposeAPI
	serverAPI  *ServerAPI
	router     chi.Router
}

// NewServer creates the template manager over the app's models and registers
// every route.
func NewServer(a *app, version VersionInfo) (*Server, error) {
	cfg := a.cm.Get()
	m := newMetrics()
	a.registry.metrics = m

	tm, err := templating.NewTemplateManager(a.logger, a.registry, cfg.Templates, cfg.Server.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create template manager: %w", err)
	}
	a.cm.SetTemplateManager(tm)

	s := &Server{
		app:        a,
		tm:         tm,
		metrics:    m,
		modelsAPI:  NewModelsAPI(a.store, a.registry, cfg.Server.MaxBodyBytes, a.logger),
		composeAPI: NewComposeAPI(tm, a.logger),
		serverAPI:  NewServerAPI(a.cm, version, a.logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Handle("/metrics", m.Handler())
	r.Route("/api", func(r chi.Router) {
		s.modelsAPI.RegisterRoutes(r)
		s.composeAPI.RegisterRoutes(r)
		s.serverAPI.RegisterRoutes(r)
	})
	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// statusFor maps an error to the status code reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, markov.ErrInvalidInput), errors.Is(err, markov.ErrInvalidOrder):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Error("Failed to encode JSON response", "error", err)
		}
	}
}
