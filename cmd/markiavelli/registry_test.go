package main

import (
	"context"
	"strings"
	"testing"

	"github.com/CTAG07/Markiavelli/pkg/markov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TrainSavesModel(t *testing.T) {
	a := newFishApp(t)
	ctx := t.Context()

	want := markov.ModelStats{Order: 2, States: 8, TotalChains: 8, TotalFrequency: 8, StartStates: 2, Vocabulary: 6}
	stats, err := a.registry.Stats(ctx, "fish")
	require.NoError(t, err)
	assert.Equal(t, want, stats)

	// A fresh registry over the same store sees the saved model.
	cfg := a.cm.Get()
	fresh := newModelRegistry(a.store, &cfg, a.logger)
	stats, err = fresh.Stats(ctx, "fish")
	require.NoError(t, err)
	assert.Equal(t, want, stats)
}

func TestRegistry_TrainAccumulates(t *testing.T) {
	a := newFishApp(t)
	stats, err := a.registry.Train(t.Context(), "fish", 2, testTrainingData)
	require.NoError(t, err)
	assert.Equal(t, 16, stats.TotalFrequency)
	assert.Equal(t, 8, stats.TotalChains)
}

func TestRegistry_TrainOrderMismatch(t *testing.T) {
	a := newFishApp(t)
	_, err := a.registry.Train(t.Context(), "fish", 3, "more text here.")
	require.ErrorIs(t, err, markov.ErrInvalidOrder)

	var orderErr *markov.InvalidOrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, 3, orderErr.Order)
	assert.Equal(t, 2, orderErr.Expected)
}

func TestRegistry_TrainInvalidInput(t *testing.T) {
	a := newFishApp(t)
	_, err := a.registry.Train(t.Context(), "fish", 0, "bad \x00 text")
	require.ErrorIs(t, err, markov.ErrInvalidInput)

	stats, err := a.registry.Stats(t.Context(), "fish")
	require.NoError(t, err)
	assert.Equal(t, 8, stats.TotalFrequency)
}

func TestRegistry_Generate(t *testing.T) {
	a := newFishApp(t)
	ctx := t.Context()

	text, err := a.registry.Generate(ctx, "fish", markov.WithTemperature(0))
	require.NoError(t, err)
	assert.Contains(t, fishTexts, text)

	first, err := a.registry.Generate(ctx, "fish", markov.WithSeed(7), markov.WithEarlyTermination(false), markov.WithMaxLength(30))
	require.NoError(t, err)
	second, err := a.registry.GenerateText("fish", markov.WithSeed(7), markov.WithEarlyTermination(false), markov.WithMaxLength(30))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = a.registry.Generate(ctx, "missing")
	assert.ErrorIs(t, err, errModelNotFound)
}

func TestRegistry_Stream(t *testing.T) {
	a := newFishApp(t)

	var sb strings.Builder
	err := a.registry.Stream(t.Context(), "fish", func(token markov.Token) error {
		sb.WriteString(token.Text)
		return nil
	}, markov.WithTemperature(0))
	require.NoError(t, err)
	assert.Contains(t, fishTexts, sb.String())

	ctx, cancel := context.WithCancel(t.Context())
	count := 0
	err = a.registry.Stream(ctx, "fish", func(markov.Token) error {
		count++
		cancel()
		return nil
	}, markov.WithEarlyTermination(false), markov.WithMaxLength(1000))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, count, 1000)
}

func TestRegistry_MergeThenTrainKeepsImport(t *testing.T) {
	a := newFishApp(t)
	ctx := t.Context()

	other, err := markov.NewModel(2)
	require.NoError(t, err)
	require.NoError(t, other.Train("x y z."))
	exported := other.Snapshot()
	exported.Name = "fish"

	info, err := a.registry.Merge(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, "fish", info.Name)
	_, err = a.registry.Train(ctx, "fish", 0, "c d e.")
	require.NoError(t, err)

	cfg := a.cm.Get()
	m, err := newModelRegistry(a.store, &cfg, a.logger).get(ctx, "fish")
	require.NoError(t, err)
	successors, total := m.Successors(markov.State{"x", "y"})
	require.Len(t, successors, 1)
	assert.Equal(t, "z", successors[0].Token)
	assert.Equal(t, 1, total)
	_, total = m.Successors(markov.State{"c", "d"})
	assert.Equal(t, 1, total)
}

func TestRegistry_PruneThenTrainKeepsPrune(t *testing.T) {
	a := newFishApp(t)
	ctx := t.Context()

	removed, err := a.registry.Prune(ctx, "fish", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), removed)

	stats, err := a.registry.Train(ctx, "fish", 0, "c d e.")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalChains)

	cfg := a.cm.Get()
	stored, err := newModelRegistry(a.store, &cfg, a.logger).Stats(ctx, "fish")
	require.NoError(t, err)
	assert.Equal(t, stats, stored)

	_, err = a.registry.Prune(ctx, "missing", 1)
	assert.ErrorIs(t, err, errModelNotFound)
}

func TestRegistry_RemoveThenTrain(t *testing.T) {
	a := newFishApp(t)
	ctx := t.Context()

	require.NoError(t, a.registry.Remove(ctx, "fish"))
	assert.ErrorIs(t, a.registry.Remove(ctx, "fish"), errModelNotFound)

	stats, err := a.registry.Train(ctx, "fish", 0, "c d e.")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChains)
	assert.Equal(t, 2, stats.TotalFrequency)
}
