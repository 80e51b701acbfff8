package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/CTAG07/Markiavelli/pkg/markov"
	"github.com/CTAG07/Markiavelli/pkg/modelstore"
)

var errModelNotFound = errors.New("model not found")

// modelRegistry caches the stored models in memory. Generation holds the read
// lock and every mutation of a model or its rows holds the write lock, so a
// model is never trained while it is sampled. It implements templating.Generator.
type modelRegistry struct {
	mu        sync.RWMutex
	models    map[string]*markov.Model
	store     *modelstore.Store
	modelOpts []markov.ModelOption
	genOpts   []markov.GenerateOption
	order     int
	logger    *slog.Logger
	metrics   *metrics
}

func newModelRegistry(store *modelstore.Store, cfg *Config, logger *slog.Logger) *modelRegistry {
	return &modelRegistry{
		models:    make(map[string]*markov.Model),
		store:     store,
		modelOpts: cfg.ModelOptions(logger),
		genOpts:   cfg.GenerateOptions(),
		order:     cfg.Model.Order,
		logger:    logger,
	}
}

// get returns the cached model, loading it from the store on first use.
func (r *modelRegistry) get(ctx context.Context, name string) (*markov.Model, error) {
	r.mu.RLock()
	m, ok := r.models[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, name)
}

// load must be called with the write lock held.
func (r *modelRegistry) load(ctx context.Context, name string) (*markov.Model, error) {
	if m, ok := r.models[name]; ok {
		return m, nil
	}
	info, err := r.info(ctx, name)
	if err != nil {
		return nil, err
	}
	m, err := r.store.Load(ctx, info, r.modelOpts...)
	if err != nil {
		return nil, err
	}
	r.models[name] = m
	return m, nil
}

// Generate samples from the named model with the configured defaults
// followed by opts.
func (r *modelRegistry) Generate(ctx context.Context, name string, opts ...markov.GenerateOption) (string, error) {
	m, err := r.get(ctx, name)
	if err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, err := m.Generate(append(append([]markov.GenerateOption(nil), r.genOpts...), opts...)...)
	if err == nil {
		r.metrics.observeGeneration(name)
	}
	return text, err
}

// GenerateText implements templating.Generator.
func (r *modelRegistry) GenerateText(model string, opts ...markov.GenerateOption) (string, error) {
	return r.Generate(context.Background(), model, opts...)
}

// Stream samples like Generate and calls emit for each token. The read lock
// is held until the stream ends.
func (r *modelRegistry) Stream(ctx context.Context, name string, emit func(markov.Token) error, opts ...markov.GenerateOption) error {
	m, err := r.get(ctx, name)
	if err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	tokens, err := m.GenerateStream(ctx, append(append([]markov.GenerateOption(nil), r.genOpts...), opts...)...)
	if err != nil {
		return err
	}
	for token := range tokens {
		if err = emit(token); err != nil {
			cancel()
			for range tokens {
			}
			return err
		}
	}
	r.metrics.observeGeneration(name)
	return ctx.Err()
}

// Train adds documents to the named model and saves it. A model that does not
// exist yet is created with order, or the configured order when order is 0.
// A non-zero order that differs from an existing model's is an
// *markov.InvalidOrderError.
func (r *modelRegistry) Train(ctx context.Context, name string, order int, docs ...string) (markov.ModelStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.load(ctx, name)
	switch {
	case errors.Is(err, errModelNotFound):
		if order == 0 {
			order = r.order
		}
		if m, err = markov.NewModel(order, r.modelOpts...); err != nil {
			return markov.ModelStats{}, err
		}
	case err != nil:
		return markov.ModelStats{}, err
	case order != 0 && order != m.Order():
		return markov.ModelStats{}, &markov.InvalidOrderError{Order: order, Expected: m.Order()}
	}

	if err = m.Train(docs...); err != nil {
		return markov.ModelStats{}, err
	}
	if _, err = r.store.Save(ctx, name, m); err != nil {
		// The cached model no longer matches the store.
		delete(r.models, name)
		return markov.ModelStats{}, fmt.Errorf("failed to save model '%s': %w", name, err)
	}
	r.models[name] = m
	r.metrics.observeTraining(name, len(docs))

	stats := m.Stats()
	r.logger.InfoContext(ctx, "Model trained",
		slog.String("model_name", name),
		slog.Int("documents", len(docs)),
		slog.Int("states", stats.States),
	)
	return stats, nil
}

// Stats reports the size of the named model.
func (r *modelRegistry) Stats(ctx context.Context, name string) (markov.ModelStats, error) {
	m, err := r.get(ctx, name)
	if err != nil {
		return markov.ModelStats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return m.Stats(), nil
}

// Export writes the named model as JSON to w.
func (r *modelRegistry) Export(ctx context.Context, name string, w io.Writer) error {
	m, err := r.get(ctx, name)
	if err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return m.Export(w, name)
}

// Merge adds an exported model to the stored model of the same name. The
// store write and the eviction share the write lock, so a concurrent Train
// cannot save over the merged rows.
func (r *modelRegistry) Merge(ctx context.Context, exported *markov.ExportedModel) (modelstore.ModelInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, err := r.store.Merge(ctx, exported)
	if err != nil {
		return modelstore.ModelInfo{}, err
	}
	delete(r.models, info.Name)
	return info, nil
}

// Prune removes transitions seen minFreq times or fewer from the named model.
func (r *modelRegistry) Prune(ctx context.Context, name string, minFreq int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, err := r.info(ctx, name)
	if err != nil {
		return 0, err
	}
	removed, err := r.store.Prune(ctx, info, minFreq)
	delete(r.models, name)
	return removed, err
}

// PruneVocabulary removes rare tokens from every stored model.
func (r *modelRegistry) PruneVocabulary(ctx context.Context, minFreq int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed, err := r.store.VocabularyPrune(ctx, minFreq)
	clear(r.models)
	return removed, err
}

// Remove deletes the named model from the store.
func (r *modelRegistry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, err := r.info(ctx, name)
	if err != nil {
		return err
	}
	delete(r.models, name)
	return r.store.RemoveModel(ctx, info)
}

func (r *modelRegistry) info(ctx context.Context, name string) (modelstore.ModelInfo, error) {
	info, err := r.store.GetModelInfo(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return modelstore.ModelInfo{}, fmt.Errorf("%w: '%s'", errModelNotFound, name)
	}
	return info, err
}
