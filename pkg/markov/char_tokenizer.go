package markov

import (
	"bufio"
	"errors"
	"io"
	"unicode/utf8"
)

// CharTokenizer treats every rune, whitespace included, as a token. Joining
// its tokens with no separator reproduces the input exactly.
type CharTokenizer struct{}

// NewCharTokenizer returns a character-level tokenizer.
func NewCharTokenizer() *CharTokenizer {
	return &CharTokenizer{}
}

// Separator always returns "".
func (CharTokenizer) Separator(_, _ string) string {
	return ""
}

// Terminal reports whether token is '.', '!' or '?'.
func (CharTokenizer) Terminal(token string) bool {
	return token == "." || token == "!" || token == "?"
}

// NewStream returns a rune-by-rune stream over r.
func (c CharTokenizer) NewStream(r io.Reader) StreamTokenizer {
	return &charStream{reader: bufio.NewReader(r), terminal: c.Terminal}
}

type charStream struct {
	reader   *bufio.Reader
	terminal func(string) bool
}

func (s *charStream) Next() (*Token, error) {
	r, size, err := s.reader.ReadRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if r == utf8.RuneError && size == 1 {
		return nil, invalidInput("text is not valid UTF-8", nil)
	}
	if r == 0 {
		return nil, invalidInput("text contains NUL bytes", nil)
	}
	text := string(r)
	return &Token{Text: text, EOC: s.terminal(text)}, nil
}
