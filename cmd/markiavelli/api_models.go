package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/CTAG07/Markiavelli/pkg/markov"
	"github.com/CTAG07/Markiavelli/pkg/modelstore"
	"github.com/go-chi/chi/v5"
)

const (
	maxGenerateCount     = 100
	defaultKeywordWeight = 4
)

// ModelsAPI holds the dependencies for the /api/models handlers.
type ModelsAPI struct {
	store        *modelstore.Store
	registry     *modelRegistry
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewModelsAPI creates a new instance of the ModelsAPI.
func NewModelsAPI(store *modelstore.Store, registry *modelRegistry, maxBodyBytes int64, logger *slog.Logger) *ModelsAPI {
	return &ModelsAPI{
		store:        store,
		registry:     registry,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes sets up the routing for all model endpoints.
func (a *ModelsAPI) RegisterRoutes(r chi.Router) {
	r.Get("/models", a.handleListModels)
	r.Post("/models", a.handleCreateModel)
	r.Post("/models/import", a.handleImport)
	r.Post("/vocabulary/prune", a.handleVocabPrune)
	r.Route("/models/{name}", func(r chi.Router) {
		r.Delete("/", a.handleDeleteModel)
		r.Post("/train", a.handleTrain)
		r.Post("/generate", a.handleGenerate)
		r.Get("/export", a.handleExport)
		r.Post("/prune", a.handlePrune)
		r.Get("/stats", a.handleStats)
	})
}

type CreateModelRequest struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type PruneRequest struct {
	MinFreq int `json:"minFreq"`
}

type PruneResponse struct {
	Removed int64 `json:"removed"`
}

// GenerateRequest holds the options of a generate call. Unset fields use the
// configured defaults.
type GenerateRequest struct {
	Count            int      `json:"count"`
	MaxLength        *int     `json:"max_length"`
	MinLength        *int     `json:"min_length"`
	EarlyTermination *bool    `json:"early_termination"`
	Temperature      *float64 `json:"temperature"`
	TopK             *int     `json:"top_k"`
	Start            string   `json:"start"`
	Seed             *uint64  `json:"seed"`
	Keywords         []string `json:"keywords"`
	KeywordWeight    int      `json:"keyword_weight"`
	Stream           bool     `json:"stream"`
}

type GenerateResponse struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

// options converts the request into generation options.
func (req *GenerateRequest) options() []markov.GenerateOption {
	var opts []markov.GenerateOption
	if req.MaxLength != nil {
		opts = append(opts, markov.WithMaxLength(*req.MaxLength))
	}
	if req.MinLength != nil {
		opts = append(opts, markov.WithMinLength(*req.MinLength))
	}
	if req.EarlyTermination != nil {
		opts = append(opts, markov.WithEarlyTermination(*req.EarlyTermination))
	}
	if req.Temperature != nil {
		opts = append(opts, markov.WithTemperature(*req.Temperature))
	}
	if req.TopK != nil {
		opts = append(opts, markov.WithTopK(*req.TopK))
	}
	if req.Start != "" {
		opts = append(opts, markov.WithStartText(req.Start))
	}
	if req.Seed != nil {
		// Shared by every text of the request.
		opts = append(opts, markov.WithRand(rand.New(rand.NewPCG(*req.Seed, *req.Seed))))
	}
	if len(req.Keywords) > 0 {
		weight := req.KeywordWeight
		if weight == 0 {
			weight = defaultKeywordWeight
		}
		opts = append(opts, markov.WithKeywords(weight, req.Keywords...))
	}
	return opts
}

func (a *ModelsAPI) respondWithErr(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := statusFor(err)
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		code = http.StatusRequestEntityTooLarge
	}
	if code == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), msg, "error", err)
	}
	respondWithError(w, code, fmt.Sprintf("%s: %v", msg, err))
}

func (a *ModelsAPI) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.store.GetModelInfos(r.Context())
	if err != nil {
		a.respondWithErr(w, r, "Failed to retrieve models", err)
		return
	}
	modelList := make([]modelstore.ModelInfo, 0, len(models))
	for _, model := range models {
		modelList = append(modelList, model)
	}
	sort.Slice(modelList, func(i, j int) bool { return modelList[i].Name < modelList[j].Name })
	respondWithJSON(w, http.StatusOK, modelList)
}

func (a *ModelsAPI) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondWithError(w, http.StatusBadRequest, "Model name must not be empty")
		return
	}
	if req.Order == 0 {
		req.Order = a.registry.order
	}

	if _, err := a.store.GetModelInfo(r.Context(), req.Name); err == nil {
		respondWithError(w, http.StatusConflict, fmt.Sprintf("Model '%s' already exists", req.Name))
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		a.respondWithErr(w, r, "Failed to check model", err)
		return
	}

	info, err := a.store.InsertModel(r.Context(), modelstore.ModelInfo{Name: req.Name, Order: req.Order})
	if err != nil {
		a.respondWithErr(w, r, "Failed to create model", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, info)
}

func (a *ModelsAPI) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Remove(r.Context(), chi.URLParam(r, "name")); err != nil {
		a.respondWithErr(w, r, "Failed to remove model", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTrain trains the body into a model, creating the model when needed.
// The body is one document, or one document per line with ?split=lines.
func (a *ModelsAPI) handleTrain(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	order := 0
	if v := r.URL.Query().Get("order"); v != "" {
		var err error
		if order, err = strconv.Atoi(v); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid order")
			return
		}
		if order < 1 {
			a.respondWithErr(w, r, "Invalid order", &markov.InvalidOrderError{Order: order})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		a.respondWithErr(w, r, "Failed to read body", err)
		return
	}
	var docs []string
	if r.URL.Query().Get("split") == "lines" {
		for _, line := range strings.Split(string(body), "\n") {
			if strings.TrimSpace(line) != "" {
				docs = append(docs, line)
			}
		}
	} else {
		docs = []string{string(body)}
	}

	stats, err := a.registry.Train(r.Context(), name, order, docs...)
	if err != nil {
		a.respondWithErr(w, r, "Training failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (a *ModelsAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 0 || req.Count > maxGenerateCount {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxGenerateCount))
		return
	}
	opts := req.options()

	if req.Stream {
		a.streamGenerate(w, r, name, opts)
		return
	}

	texts := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		text, err := a.registry.Generate(r.Context(), name, opts...)
		if err != nil {
			a.respondWithErr(w, r, "Generation failed", err)
			return
		}
		texts = append(texts, text)
	}
	respondWithJSON(w, http.StatusOK, GenerateResponse{Model: name, Texts: texts})
}

// streamGenerate writes one text as plain text, flushing after every token.
func (a *ModelsAPI) streamGenerate(w http.ResponseWriter, r *http.Request, name string, opts []markov.GenerateOption) {
	flusher, _ := w.(http.Flusher)
	started := false
	err := a.registry.Stream(r.Context(), name, func(token markov.Token) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, token.Text); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}, opts...)
	if err != nil {
		if !started {
			a.respondWithErr(w, r, "Generation failed", err)
			return
		}
		a.logger.WarnContext(r.Context(), "Generation stream ended early", "error", err)
		return
	}
	if !started {
		w.WriteHeader(http.StatusOK)
	}
}

func (a *ModelsAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var buf bytes.Buffer
	if err := a.registry.Export(r.Context(), name, &buf); err != nil {
		a.respondWithErr(w, r, "Export failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".json"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleImport merges an exported model into the store. ?name overrides the
// name recorded in the file.
func (a *ModelsAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	exported, err := markov.DecodeExported(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		a.respondWithErr(w, r, "Import failed", err)
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		exported.Name = name
	}
	if exported.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Import failed: model name is required")
		return
	}

	info, err := a.registry.Merge(r.Context(), exported)
	if err != nil {
		a.respondWithErr(w, r, "Import failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

func (a *ModelsAPI) handlePrune(w http.ResponseWriter, r *http.Request) {
	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	removed, err := a.registry.Prune(r.Context(), chi.URLParam(r, "name"), req.MinFreq)
	if err != nil {
		a.respondWithErr(w, r, "Prune failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, PruneResponse{Removed: removed})
}

func (a *ModelsAPI) handleVocabPrune(w http.ResponseWriter, r *http.Request) {
	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	removed, err := a.registry.PruneVocabulary(r.Context(), req.MinFreq)
	if err != nil {
		a.respondWithErr(w, r, "Vocabulary prune failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, PruneResponse{Removed: int64(removed)})
}

func (a *ModelsAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.registry.Stats(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.respondWithErr(w, r, "Failed to retrieve stats", err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
