package markov

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultTokenizer(t *testing.T) {
	tokenizer := NewDefaultTokenizer()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Words and punctuation",
			input:    "Hello, world! How are you?",
			expected: []string{"Hello", ",", "world", "!", "How", "are", "you", "?"},
		},
		{
			name:     "Apostrophes stay inside words",
			input:    "don't stop",
			expected: []string{"don't", "stop"},
		},
		{
			name:     "Multiple lines",
			input:    "one fish\ntwo fish.",
			expected: []string{"one", "fish", "two", "fish", "."},
		},
		{
			name:     "Unicode letters",
			input:    "naïve café",
			expected: []string{"naïve", "café"},
		},
		{
			name:     "Dotted abbreviations stay whole",
			input:    "the U.S. army. I. said",
			expected: []string{"the", "U.S.", "army", ".", "I", ".", "said"},
		},
		{
			name:     "Empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			corpus, err := Tokenize(tokenizer, tc.input)
			if err != nil {
				t.Fatalf("Tokenize() failed: %v", err)
			}
			if !reflect.DeepEqual(corpus.Documents[0], tc.expected) {
				t.Errorf("tokens = %q, want %q", corpus.Documents[0], tc.expected)
			}
		})
	}
}

func TestDefaultTokenizerTerminal(t *testing.T) {
	tokenizer := NewDefaultTokenizer()
	for token, want := range map[string]bool{".": true, "!": true, "?": true, ",": false, "fish": false, "..": false} {
		if got := tokenizer.Terminal(token); got != want {
			t.Errorf("Terminal(%q) = %v, want %v", token, got, want)
		}
	}

	custom := NewDefaultTokenizer(WithEOCRegex(`^;$`))
	if !custom.Terminal(";") || custom.Terminal(".") {
		t.Error("WithEOCRegex did not replace the terminal rule")
	}

	dotted := NewDefaultTokenizer(WithEOCRegex(`\.$`))
	if dotted.Terminal("U.S.") || dotted.Terminal("F.B.I.") || !dotted.Terminal("end.") {
		t.Error("abbreviations should never be terminal")
	}
	noExceptions := NewDefaultTokenizer(WithEOCRegex(`\.$`), WithAbbreviations())
	if !noExceptions.Terminal("U.S.") {
		t.Error("WithAbbreviations() did not clear the exception list")
	}
	if custom := NewDefaultTokenizer(WithAbbreviations("etc.")); custom.Terminal("etc.") || custom.Terminal("U.S.") {
		t.Error("abbreviations are never terminal")
	}
}

func TestDefaultTokenizerLongRuns(t *testing.T) {
	tokenizer := NewDefaultTokenizer()

	long := strings.Repeat("a", 3*maxChunkSize)
	corpus, err := Tokenize(tokenizer, "x "+long+" y")
	if err != nil {
		t.Fatalf("Tokenize() failed: %v", err)
	}
	doc := corpus.Documents[0]
	if doc[0] != "x" || doc[len(doc)-1] != "y" {
		t.Errorf("expected the run to be framed by x and y, got %q ... %q", doc[0], doc[len(doc)-1])
	}
	if got := strings.Join(doc[1:len(doc)-1], ""); got != long {
		t.Errorf("run was not preserved: got %d bytes, want %d", len(got), len(long))
	}

	// Multi-byte runes are never cut in half.
	accents := strings.Repeat("é", maxChunkSize)
	corpus, err = Tokenize(tokenizer, accents)
	if err != nil {
		t.Fatalf("Tokenize() failed on multi-byte run: %v", err)
	}
	if got := strings.Join(corpus.Documents[0], ""); got != accents {
		t.Errorf("multi-byte run was not preserved: got %d bytes, want %d", len(got), len(accents))
	}
}

func TestJoin(t *testing.T) {
	testCases := []struct {
		name      string
		tokenizer Tokenizer
		tokens    []string
		expected  string
	}{
		{
			name:      "Closing punctuation is glued",
			tokenizer: NewDefaultTokenizer(),
			tokens:    []string{"one", "fish", ",", "two", "fish", "."},
			expected:  "one fish, two fish.",
		},
		{
			name:      "Opening punctuation is glued",
			tokenizer: NewDefaultTokenizer(),
			tokens:    []string{"a", "(", "b", ")", "costs", "$", "5"},
			expected:  "a (b) costs $5",
		},
		{
			name:      "Custom separator",
			tokenizer: NewDefaultTokenizer(WithSeparator("_")),
			tokens:    []string{"a", "b", "c"},
			expected:  "a_b_c",
		},
		{
			name:      "Character tokens",
			tokenizer: NewCharTokenizer(),
			tokens:    []string{"h", "i", " ", "!"},
			expected:  "hi !",
		},
		{
			name:      "No tokens",
			tokenizer: NewDefaultTokenizer(),
			expected:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Join(tc.tokenizer, tc.tokens); got != tc.expected {
				t.Errorf("Join() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestCharTokenizer(t *testing.T) {
	input := "héllo wörld."
	corpus, err := Tokenize(NewCharTokenizer(), input)
	if err != nil {
		t.Fatalf("Tokenize() failed: %v", err)
	}
	if got := Join(NewCharTokenizer(), corpus.Documents[0]); got != input {
		t.Errorf("round trip = %q, want %q", got, input)
	}
	if len(corpus.Documents[0]) != len([]rune(input)) {
		t.Errorf("expected one token per rune, got %d tokens", len(corpus.Documents[0]))
	}

	m := newTestModel(t, 3, WithTokenizer(NewCharTokenizer()))
	if err := m.Train("abcabcabd"); err != nil {
		t.Fatal(err)
	}
	out, err := m.Generate(WithStartText("abc"), WithMaxLength(6), WithTemperature(0))
	if err != nil {
		t.Fatal(err)
	}
	if out != "abcabc" {
		t.Errorf("Generate() = %q, want %q", out, "abcabc")
	}

	if _, err := Tokenize(NewCharTokenizer(), "bad\xffbyte"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for invalid UTF-8, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if got := (State{"one", "fish"}).String(); got != "(one fish)" {
		t.Errorf("String() = %q", got)
	}
	if strings.Contains(State{"a", "b"}.key(), " ") {
		t.Error("state keys must not use the space separator")
	}
}
