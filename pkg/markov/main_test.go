package markov

import (
	"go/build"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const testTrainingData = "one fish two fish. red fish blue fish."

// newTestModel creates an empty model of the given order, failing the test on error.
func newTestModel(t *testing.T, order int, opts ...ModelOption) *Model {
	t.Helper()
	m, err := NewModel(order, opts...)
	if err != nil {
		t.Fatalf("NewModel(%d) error = %v", order, err)
	}
	return m
}

// newTrainedModel is a convenience helper that returns an order-2 model
// trained on testTrainingData.
func newTrainedModel(t *testing.T) *Model {
	t.Helper()
	m := newTestModel(t, 2)
	if err := m.Train(testTrainingData); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}
	return m
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
