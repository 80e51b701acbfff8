package markov

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestTrain(t *testing.T) {
	m := newTestModel(t, 2)

	if err := m.Train("a b c. a b d."); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}

	successors, total := m.Successors(State{"a", "b"})
	if total != 2 {
		t.Errorf("expected state (a b) to have total frequency of 2, got %d", total)
	}
	expected := []Successor{{Token: "c", Count: 1}, {Token: "d", Count: 1}}
	if !reflect.DeepEqual(successors, expected) {
		t.Errorf("expected successors %+v, got %+v", expected, successors)
	}

	// (b c) -> "." and (c .) -> "a"
	if _, total := m.Successors(State{"c", "."}); total != 1 {
		t.Errorf("expected state (c .) to have total frequency of 1, got %d", total)
	}
	// The final state has nothing after it.
	if succ, total := m.Successors(State{"d", "."}); succ != nil || total != 0 {
		t.Errorf("expected no successors for (d .), got %+v", succ)
	}
}

func TestTrainEndToEnd(t *testing.T) {
	m := newTestModel(t, 1)
	if err := m.Train("the cat sat"); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}

	if succ, _ := m.Successors(State{"the"}); !reflect.DeepEqual(succ, []Successor{{Token: "cat", Count: 1}}) {
		t.Errorf("(the) successors = %+v, want [{cat 1}]", succ)
	}
	if succ, _ := m.Successors(State{"cat"}); !reflect.DeepEqual(succ, []Successor{{Token: "sat", Count: 1}}) {
		t.Errorf("(cat) successors = %+v, want [{sat 1}]", succ)
	}

	out, err := m.Generate(WithStart(State{"the"}), WithMaxLength(3), WithTemperature(0))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if out != "the cat sat" {
		t.Errorf("Generate() = %q, want %q", out, "the cat sat")
	}
}

func TestTrainSuccessorCountsMatchObservations(t *testing.T) {
	texts := []string{
		"the cat sat on the mat. the cat ran.",
		"the dog sat on the log!",
		"a cat and a dog sat on the mat?",
	}
	for _, order := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("Order%d", order), func(t *testing.T) {
			m := newTestModel(t, order)
			if err := m.Train(texts...); err != nil {
				t.Fatalf("Train() failed: %v", err)
			}
			corpus, err := m.Tokenize(texts...)
			if err != nil {
				t.Fatalf("Tokenize() failed: %v", err)
			}

			observed := make(map[string]int)
			for _, doc := range corpus.Documents {
				for i := 0; i+order < len(doc); i++ {
					observed[State(doc[i:i+order]).key()]++
				}
			}

			for k, e := range m.table {
				sum := 0
				for _, s := range e.successors {
					sum += s.Count
				}
				if sum != e.total {
					t.Errorf("state %s: successor sum %d != total %d", e.state, sum, e.total)
				}
				if sum != observed[k] {
					t.Errorf("state %s: successor sum %d, observed %d times", e.state, sum, observed[k])
				}
			}
			if len(m.table) != len(observed) {
				t.Errorf("table has %d states, observed %d", len(m.table), len(observed))
			}
		})
	}
}

func TestTrainOrderIndependence(t *testing.T) {
	corpusA := []string{"one fish two fish.", "red fish blue fish."}
	corpusB := []string{"this one has a little star.", "this one has a little car. say! what a lot of fish there are."}

	ab := newTestModel(t, 2)
	if err := ab.Train(corpusA...); err != nil {
		t.Fatal(err)
	}
	if err := ab.Train(corpusB...); err != nil {
		t.Fatal(err)
	}

	ba := newTestModel(t, 2)
	if err := ba.Train(corpusB...); err != nil {
		t.Fatal(err)
	}
	if err := ba.Train(corpusA...); err != nil {
		t.Fatal(err)
	}

	union := newTestModel(t, 2)
	if err := union.Train(append(append([]string{}, corpusA...), corpusB...)...); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(ab.Snapshot(), ba.Snapshot()) {
		t.Error("training A then B differs from training B then A")
	}
	if !reflect.DeepEqual(ab.Snapshot(), union.Snapshot()) {
		t.Error("training A then B differs from training A and B at once")
	}

	for seed := uint64(0); seed < 5; seed++ {
		outAB, _ := ab.Generate(WithSeed(seed))
		outBA, _ := ba.Generate(WithSeed(seed))
		if outAB != outBA {
			t.Errorf("seed %d: outputs differ: %q vs %q", seed, outAB, outBA)
		}
	}
}

func TestTrainDocumentBoundaries(t *testing.T) {
	m := newTestModel(t, 1)

	if err := m.Train("hello", "world"); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	if !m.Empty() {
		t.Errorf("expected empty table for two one-token documents, got %+v", m.Stats())
	}
	if m.StartCount(State{"hello"}) != 0 {
		t.Error("a state without successors must not be a start state")
	}

	out, err := m.Generate()
	if err != nil {
		t.Fatalf("Generate() on empty model failed: %v", err)
	}
	if out != "" {
		t.Errorf("Generate() on empty model = %q, want empty", out)
	}
}

func TestTrainCorpus(t *testing.T) {
	corpus, err := NewCorpus([]string{"a", "b", "c", "d"}, 2)
	if err != nil {
		t.Fatalf("NewCorpus() failed: %v", err)
	}
	m := newTestModel(t, 1)
	if err := m.TrainCorpus(corpus); err != nil {
		t.Fatalf("TrainCorpus() failed: %v", err)
	}
	if _, total := m.Successors(State{"b"}); total != 0 {
		t.Error("transition recorded across a document boundary")
	}
	if _, total := m.Successors(State{"a"}); total != 1 {
		t.Errorf("expected (a) -> b once, got total %d", total)
	}
	if _, total := m.Successors(State{"c"}); total != 1 {
		t.Errorf("expected (c) -> d once, got total %d", total)
	}
}

func TestNewCorpus(t *testing.T) {
	tokens := []string{"a", "b", "c"}
	testCases := []struct {
		name       string
		boundaries []int
		expected   [][]string
		expectErr  bool
	}{
		{name: "No boundaries", expected: [][]string{{"a", "b", "c"}}},
		{name: "Single split", boundaries: []int{1}, expected: [][]string{{"a"}, {"b", "c"}}},
		{name: "Boundary at end", boundaries: []int{3}, expected: [][]string{{"a", "b", "c"}, {}}},
		{name: "Decreasing", boundaries: []int{2, 1}, expectErr: true},
		{name: "Out of range", boundaries: []int{4}, expectErr: true},
		{name: "Negative", boundaries: []int{-1}, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCorpus(tokens, tc.boundaries...)
			if tc.expectErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCorpus() failed: %v", err)
			}
			if !reflect.DeepEqual(c.Documents, tc.expected) {
				t.Errorf("documents = %v, want %v", c.Documents, tc.expected)
			}
			if c.Len() != len(tokens) {
				t.Errorf("Len() = %d, want %d", c.Len(), len(tokens))
			}
		})
	}
}

func TestTrainInvalidInput(t *testing.T) {
	testCases := []struct {
		name  string
		texts []string
	}{
		{name: "Invalid UTF-8", texts: []string{"valid text here.", "bad \xff\xfe bytes"}},
		{name: "NUL byte", texts: []string{"a b\x00c d"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModel(t, 1)
			err := m.Train(tc.texts...)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var inputErr *InvalidInputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected *InvalidInputError, got %T", err)
			}
			if !m.Empty() {
				t.Error("model must be unchanged after a failed Train")
			}
		})
	}

	t.Run("Corpus token with NUL", func(t *testing.T) {
		m := newTestModel(t, 1)
		err := m.TrainCorpus(Corpus{Documents: [][]string{{"a", "b\x00"}}})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestInvalidOrder(t *testing.T) {
	for _, order := range []int{0, -1} {
		_, err := NewModel(order)
		if !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("NewModel(%d): expected ErrInvalidOrder, got %v", order, err)
		}
		var orderErr *InvalidOrderError
		if !errors.As(err, &orderErr) || orderErr.Order != order {
			t.Errorf("NewModel(%d): expected *InvalidOrderError with Order %d, got %v", order, order, err)
		}
	}

	var zero Model
	if err := zero.Train("a b c"); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("zero Model Train: expected ErrInvalidOrder, got %v", err)
	}
	if _, err := zero.Generate(); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("zero Model Generate: expected ErrInvalidOrder, got %v", err)
	}
}

func TestTrainReader(t *testing.T) {
	m := newTestModel(t, 2)
	if err := m.TrainReader(strings.NewReader("one fish two fish.\nred fish blue fish.")); err != nil {
		t.Fatalf("TrainReader() failed: %v", err)
	}
	// The newline does not split documents, so (fish .) -> red is recorded.
	if succ, _ := m.Successors(State{"fish", "."}); !reflect.DeepEqual(succ, []Successor{{Token: "red", Count: 1}}) {
		t.Errorf("(fish .) successors = %+v, want [{red 1}]", succ)
	}
}

func TestTrainLongLine(t *testing.T) {
	m := newTestModel(t, 2)
	const repeats = 40000
	text := strings.Repeat("the prince rules the state well. ", repeats)
	if len(text) <= 1<<20 {
		t.Fatalf("test document is only %d bytes", len(text))
	}
	if err := m.Train(text); err != nil {
		t.Fatalf("Train() failed on a single long line: %v", err)
	}
	if _, total := m.Successors(State{"the", "prince"}); total != repeats {
		t.Errorf("expected (the prince) total of %d, got %d", repeats, total)
	}
}

func TestTrainAbbreviations(t *testing.T) {
	m := newTestModel(t, 1)
	if err := m.Train("the U.S. army marched on."); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	if m.StartCount(State{"army"}) != 0 {
		t.Error("an abbreviation should not start a new sentence")
	}

	out, err := m.Generate(WithStart(State{"the"}), WithTemperature(0))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if out != "the U.S. army marched on." {
		t.Errorf("Generate() = %q, want %q", out, "the U.S. army marched on.")
	}
}

func TestSentenceStarts(t *testing.T) {
	withStarts := newTrainedModel(t)
	if withStarts.StartCount(State{"red", "fish"}) != 1 {
		t.Error("expected (red fish) to be recorded as a sentence start")
	}
	if withStarts.StartCount(State{"one", "fish"}) != 1 {
		t.Error("expected (one fish) to be recorded as a document start")
	}

	docOnly := newTestModel(t, 2, WithSentenceStarts(false))
	if err := docOnly.Train(testTrainingData); err != nil {
		t.Fatal(err)
	}
	if docOnly.StartCount(State{"red", "fish"}) != 0 {
		t.Error("sentence starts recorded with WithSentenceStarts(false)")
	}
}

func BenchmarkTrain(b *testing.B) {
	corpus := createBenchmarkCorpus()

	for _, order := range []int{1, 2, 3, 4, 5} {
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			m, err := NewModel(order)
			if err != nil {
				b.Fatal(err)
			}

			b.SetBytes(int64(len(corpus)))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if err := m.Train(corpus); err != nil {
					b.Fatalf("Train() failed: %v", err)
				}
			}
		})
	}
}
