package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/CTAG07/Markiavelli/pkg/templating"
	"github.com/go-chi/chi/v5"
)

// ComposeAPI holds the dependencies for the /api/compose and /api/templates handlers.
type ComposeAPI struct {
	tm     *templating.TemplateManager
	logger *slog.Logger
}

// NewComposeAPI creates a new instance of the ComposeAPI.
func NewComposeAPI(tm *templating.TemplateManager, logger *slog.Logger) *ComposeAPI {
	return &ComposeAPI{
		tm:     tm,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for the composition endpoints.
func (a *ComposeAPI) RegisterRoutes(r chi.Router) {
	r.Get("/templates", a.handleListTemplates)
	r.Post("/templates/refresh", a.handleRefresh)
	r.Post("/compose", a.handleComposeRandom)
	r.Post("/compose/{template}", a.handleCompose)
}

func (a *ComposeAPI) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, a.tm.GetTemplateNames())
}

func (a *ComposeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.tm.Refresh(); err != nil {
		a.logger.ErrorContext(r.Context(), "Failed to refresh templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to refresh templates: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, a.tm.GetTemplateNames())
}

func (a *ComposeAPI) handleComposeRandom(w http.ResponseWriter, r *http.Request) {
	name := a.tm.GetRandomTemplate()
	if name == "" {
		respondWithError(w, http.StatusNotFound, "No templates loaded")
		return
	}
	a.compose(w, r, name)
}

func (a *ComposeAPI) handleCompose(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "template")
	if !slices.Contains(a.tm.GetTemplateNames(), name) {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", name))
		return
	}
	a.compose(w, r, name)
}

// compose renders a template as Markdown. An optional JSON body is passed to
// the template as its data.
func (a *ComposeAPI) compose(w http.ResponseWriter, r *http.Request, name string) {
	var data map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	var buf bytes.Buffer
	if err := a.tm.Execute(&buf, name, data); err != nil {
		a.logger.WarnContext(r.Context(), "Failed to compose post", slog.String("template", name), "error", err)
		respondWithError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to compose post: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
