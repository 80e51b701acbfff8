package markov

import (
	"io"
	"strings"
)

// stateSep joins the tokens of a State into a map key. Tokenizers never emit
// it because the ingestor rejects NUL bytes in its input.
const stateSep = "\x00"

// Token represents a single tokenized unit of text. It contains the text itself
// and a boolean flag indicating if it marks the end of a chain (e.g., a sentence).
type Token struct {
	Text string
	EOC  bool
}

// Tokenizer is an interface that defines the contract for splitting input text
// into tokens and joining generated tokens back into text. This allows the
// model to be independent of the specific tokenization strategy.
type Tokenizer interface {
	// NewStream returns a stateful StreamTokenizer for processing an io.Reader.
	NewStream(io.Reader) StreamTokenizer
	// Separator returns the string that should be placed between prev and
	// current when building a final generated string.
	Separator(prev, current string) string
	// Terminal reports whether a token ends a sentence.
	Terminal(token string) bool
}

// StreamTokenizer is an interface for a stateful tokenizer that processes a
// stream of data, returning one token at a time.
type StreamTokenizer interface {
	// Next returns the next token from the stream. It returns io.EOF as the
	// error when the stream is fully consumed.
	Next() (*Token, error)
}

// State is the fixed-length window of preceding tokens used to look up
// successors. Its length always equals the order of the model it belongs to.
type State []string

func (s State) key() string {
	return strings.Join(s, stateSep)
}

func (s State) String() string {
	return "(" + strings.Join(s, " ") + ")"
}

// Successor is a token observed after a State, with the number of times it
// was observed.
type Successor struct {
	Token string
	Count int
}

// Corpus is an ordered sequence of tokens split into independent documents.
// Transitions are never recorded across a document boundary.
type Corpus struct {
	Documents [][]string
}

// NewCorpus splits a flat token sequence into documents. Each boundary is the
// index of the first token of a new document; boundaries must be increasing
// and within [0, len(tokens)].
func NewCorpus(tokens []string, boundaries ...int) (Corpus, error) {
	var c Corpus
	start := 0
	for _, b := range boundaries {
		if b < start || b > len(tokens) {
			return Corpus{}, invalidInput("document boundaries must be increasing and within the token sequence", nil)
		}
		c.Documents = append(c.Documents, tokens[start:b])
		start = b
	}
	c.Documents = append(c.Documents, tokens[start:])
	return c, nil
}

// Len returns the total number of tokens across all documents.
func (c Corpus) Len() int {
	n := 0
	for _, doc := range c.Documents {
		n += len(doc)
	}
	return n
}
