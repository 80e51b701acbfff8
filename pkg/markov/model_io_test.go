package markov

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestExportImport(t *testing.T) {
	m := newTrainedModel(t)

	var buf bytes.Buffer
	if err := m.Export(&buf, "fish"); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	loaded, name, err := Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if name != "fish" {
		t.Errorf("Load() name = %q, want %q", name, "fish")
	}
	if loaded.Order() != 2 {
		t.Errorf("Load() order = %d, want 2", loaded.Order())
	}
	if !reflect.DeepEqual(m.Snapshot(), loaded.Snapshot()) {
		t.Error("imported model differs from the exported one")
	}

	for seed := uint64(0); seed < 10; seed++ {
		want, _ := m.Generate(WithSeed(seed), WithMaxLength(30), WithEarlyTermination(false))
		got, _ := loaded.Generate(WithSeed(seed), WithMaxLength(30), WithEarlyTermination(false))
		if got != want {
			t.Errorf("seed %d: imported model generated %q, want %q", seed, got, want)
		}
	}
}

func TestMerge(t *testing.T) {
	a := newTestModel(t, 1)
	if err := a.Train("a b c"); err != nil {
		t.Fatal(err)
	}
	b := newTestModel(t, 1)
	if err := b.Train("a b d"); err != nil {
		t.Fatal(err)
	}

	if err := a.Merge(b.Snapshot()); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	both := newTestModel(t, 1)
	if err := both.Train("a b c", "a b d"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Snapshot(), both.Snapshot()) {
		t.Error("merging two models should equal training on both corpora")
	}
	if _, total := a.Successors(State{"a"}); total != 2 {
		t.Errorf("expected (a) total of 2 after merge, got %d", total)
	}
	if a.StartCount(State{"a"}) != 2 {
		t.Errorf("expected (a) start count of 2 after merge, got %d", a.StartCount(State{"a"}))
	}
}

func TestMergeErrors(t *testing.T) {
	testCases := []struct {
		name     string
		exported *ExportedModel
		target   error
	}{
		{
			name:     "Nil model",
			exported: nil,
			target:   ErrInvalidInput,
		},
		{
			name:     "Order mismatch",
			exported: &ExportedModel{Order: 3},
			target:   ErrInvalidOrder,
		},
		{
			name: "Dangling next token",
			exported: &ExportedModel{
				Order:      2,
				Vocabulary: []string{"a", "b"},
				Chains:     []ExportedChain{{Prefix: []int{0, 1}, NextTokenID: 7, Frequency: 1}},
			},
			target: ErrInvalidInput,
		},
		{
			name: "Dangling prefix token",
			exported: &ExportedModel{
				Order:      2,
				Vocabulary: []string{"a", "b"},
				Chains:     []ExportedChain{{Prefix: []int{0, -1}, NextTokenID: 1, Frequency: 1}},
			},
			target: ErrInvalidInput,
		},
		{
			name: "Prefix of wrong length",
			exported: &ExportedModel{
				Order:      2,
				Vocabulary: []string{"a", "b"},
				Chains:     []ExportedChain{{Prefix: []int{0}, NextTokenID: 1, Frequency: 1}},
			},
			target: ErrInvalidInput,
		},
		{
			name: "Non-positive frequency",
			exported: &ExportedModel{
				Order:      2,
				Vocabulary: []string{"a", "b"},
				Chains:     []ExportedChain{{Prefix: []int{0, 1}, NextTokenID: 0, Frequency: 0}},
			},
			target: ErrInvalidInput,
		},
		{
			name: "Token with NUL",
			exported: &ExportedModel{
				Order:      2,
				Vocabulary: []string{"a", "b\x00"},
				Chains:     []ExportedChain{{Prefix: []int{0, 1}, NextTokenID: 0, Frequency: 1}},
			},
			target: ErrInvalidInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTrainedModel(t)
			before := m.Snapshot()
			err := m.Merge(tc.exported)
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
			if !reflect.DeepEqual(before, m.Snapshot()) {
				t.Error("model changed after a failed merge")
			}
		})
	}
}

func TestImportBadJSON(t *testing.T) {
	m := newTrainedModel(t)
	err := m.Import(strings.NewReader("{not json"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExportFormat(t *testing.T) {
	m := newTestModel(t, 1)
	if err := m.Train("the cat sat"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := m.Export(&buf, ""); err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	for _, key := range []string{"order", "vocabulary", "chains", "starts"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("export is missing key %q", key)
		}
	}
	if _, ok := raw["name"]; ok {
		t.Error("an empty name should be omitted")
	}

	snapshot := m.Snapshot()
	if len(snapshot.Chains) != 2 || len(snapshot.Starts) != 1 {
		t.Errorf("expected 2 chains and 1 start, got %d and %d", len(snapshot.Chains), len(snapshot.Starts))
	}
}
