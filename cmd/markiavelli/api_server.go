package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ServerAPI holds the dependencies for the /api/server handlers.
type ServerAPI struct {
	cm      *ConfigManager
	version VersionInfo
	logger  *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewServerAPI creates a new instance of the ServerAPI.
func NewServerAPI(cm *ConfigManager, version VersionInfo, logger *slog.Logger) *ServerAPI {
	return &ServerAPI{
		cm:      cm,
		version: version,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routing for all /api/server endpoints.
func (a *ServerAPI) RegisterRoutes(r chi.Router) {
	r.Get("/server/config", a.handleGetConfig)
	r.Put("/server/config", a.handlePutConfig)
	r.Get("/server/version", a.handleVersion)
}

func (a *ServerAPI) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

// handlePutConfig saves a new configuration. Template limits apply at once;
// model and server settings apply on the next start.
func (a *ServerAPI) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var newConfig Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if err := newConfig.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.cm.Update(newConfig); err != nil {
		a.logger.Error("Failed to update config", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update config: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

func (a *ServerAPI) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, a.version)
}
