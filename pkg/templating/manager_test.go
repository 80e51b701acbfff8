package templating

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/CTAG07/Markiavelli/pkg/markov"
)

// setupTestManager creates a TemplateManager for a single test's scope, with
// one template, one partial and a trained model named "test_model".
func setupTestManager(tb testing.TB) *TemplateManager {
	tb.Helper()

	templateDir := tb.TempDir()
	writeTemplate(tb, templateDir, "dummy.tmpl.md", `Hello {{template "sig.part.md"}}`)
	writeTemplate(tb, templateDir, "sig.part.md", `-- N.M.`)

	model, err := markov.NewModel(2)
	if err != nil {
		tb.Fatal(err)
	}
	if err := model.Train("one two three four. one two three five."); err != nil {
		tb.Fatalf("failed to train markov model: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, ModelMap{"test_model": model}, nil, templateDir)
	if err != nil {
		tb.Fatalf("NewTemplateManager() failed: %v", err)
	}
	return tm
}

func writeTemplate(tb testing.TB, dir, name, content string) {
	tb.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		tb.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestNewTemplateManager(t *testing.T) {
	tm := setupTestManager(t)

	if got := tm.GetTemplateNames(); !reflect.DeepEqual(got, []string{"dummy.tmpl.md", "sig.part.md"}) {
		t.Errorf("GetTemplateNames() = %v", got)
	}
	if got := tm.GetRandomTemplate(); got != "dummy.tmpl.md" {
		t.Errorf("GetRandomTemplate() = %q, partials must never be picked", got)
	}
	if tm.GetConfig() != DefaultConfig() {
		t.Error("a nil config should fall back to DefaultConfig")
	}
}

func TestExecute(t *testing.T) {
	tm := setupTestManager(t)

	var buf bytes.Buffer
	if err := tm.Execute(&buf, "dummy.tmpl.md", nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if buf.String() != "Hello -- N.M." {
		t.Errorf("Execute() wrote %q", buf.String())
	}

	if err := tm.Execute(&buf, "missing.tmpl.md", nil); err == nil {
		t.Error("expected an error for a missing template")
	}

	buf.Reset()
	if err := tm.Execute(&buf, "", nil); err != nil || buf.Len() != 0 {
		t.Errorf("empty name should be a no-op, got %q, %v", buf.String(), err)
	}
}

func TestExecuteTemplateString(t *testing.T) {
	tm := setupTestManager(t)

	testCases := []struct {
		name      string
		content   string
		data      any
		expected  string
		expectErr bool
	}{
		{name: "Plain text", content: "just text", expected: "just text"},
		{name: "Data", content: "{{ .Title | upper }}", data: map[string]string{"Title": "prince"}, expected: "PRINCE"},
		{name: "Partial", content: `{{template "sig.part.md"}}`, expected: "-- N.M."},
		{name: "Arithmetic", content: "{{ add 2 3 }} {{ sub 2 3 }}", expected: "5 -1"},
		{name: "Repeat", content: "{{ range repeat 3 }}{{ . }}{{ end }}", expected: "012"},
		{name: "Lower", content: `{{ lower "LOUD" }}`, expected: "loud"},
		{name: "Deterministic sentence", content: `{{ markovSentence "test_model" 3 }}`, expected: "One two three"},
		{name: "Unknown model", content: `{{ markovSentence "nope" 5 }}`, expectErr: true},
		{name: "Parse error", content: "{{ .Broken ", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := tm.ExecuteTemplateString(&buf, tc.content, tc.data)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected an error, got output %q", buf.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("ExecuteTemplateString failed: %v", err)
			}
			if buf.String() != tc.expected {
				t.Errorf("got %q, want %q", buf.String(), tc.expected)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	tm := setupTestManager(t)

	writeTemplate(t, tm.GetTemplateDir(), "second.tmpl.md", "second")
	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	var buf bytes.Buffer
	if err := tm.Execute(&buf, "second.tmpl.md", nil); err != nil {
		t.Fatalf("Execute after Refresh failed: %v", err)
	}

	writeTemplate(t, tm.GetTemplateDir(), "broken.tmpl.md", "{{ if }}")
	if err := tm.Refresh(); err == nil {
		t.Fatal("expected Refresh to fail on a broken template")
	}
	buf.Reset()
	if err := tm.Execute(&buf, "second.tmpl.md", nil); err != nil {
		t.Errorf("a failed Refresh should keep the previous templates: %v", err)
	}
}

func TestEmptyTemplateDir(t *testing.T) {
	tm, err := NewTemplateManager(nil, nil, nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewTemplateManager() failed: %v", err)
	}
	if tm.GetRandomTemplate() != "" {
		t.Error("expected no templates")
	}
	var buf bytes.Buffer
	if err := tm.ExecuteTemplateString(&buf, `{{ markovSentence "m" 5 }}`, nil); err == nil {
		t.Error("expected markovSentence to fail without a generator")
	}
}

func BenchmarkExecuteTemplateString(b *testing.B) {
	tm := setupTestManager(b)
	content := `{{ markovParagraphs "test_model" 2 1 3 3 8 }}`

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tm.ExecuteTemplateString(io.Discard, content, nil); err != nil {
			b.Fatal(err)
		}
	}
}
