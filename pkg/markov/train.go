package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// maxDocumentLength prevents massive documents from taking up a large amount
// of memory; tokens past this limit are dropped.
const maxDocumentLength = 1 << 20

// Tokenize splits each text into one document of tokens using t. Empty texts
// yield empty documents. Text that is not valid UTF-8 or contains NUL bytes
// yields an *InvalidInputError.
func Tokenize(t Tokenizer, texts ...string) (Corpus, error) {
	corpus := Corpus{Documents: make([][]string, 0, len(texts))}
	for i, text := range texts {
		doc, err := tokenizeReader(t, strings.NewReader(text))
		if err != nil {
			return Corpus{}, fmt.Errorf("document %d: %w", i, err)
		}
		corpus.Documents = append(corpus.Documents, doc)
	}
	return corpus, nil
}

// Tokenize splits texts into documents with the model's tokenizer.
func (m *Model) Tokenize(texts ...string) (Corpus, error) {
	m.ensureInit()
	return Tokenize(m.tokenizer, texts...)
}

func tokenizeReader(t Tokenizer, r io.Reader) ([]string, error) {
	stream := t.NewStream(r)
	var doc []string
	for {
		token, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return doc, nil
			}
			if errors.Is(err, ErrInvalidInput) {
				return nil, err
			}
			return nil, fmt.Errorf("tokenizer error: %w", err)
		}
		if len(doc) < maxDocumentLength {
			doc = append(doc, token.Text)
		}
	}
}

// Train tokenizes each text as an independent document and adds its
// transitions to the model. Nothing is recorded if any text is invalid.
func (m *Model) Train(texts ...string) error {
	if m.order < 1 {
		return &InvalidOrderError{Order: m.order}
	}
	corpus, err := m.Tokenize(texts...)
	if err != nil {
		return err
	}
	return m.TrainCorpus(corpus)
}

// TrainReader tokenizes the whole stream as a single document and adds its
// transitions to the model.
func (m *Model) TrainReader(r io.Reader) error {
	if m.order < 1 {
		return &InvalidOrderError{Order: m.order}
	}
	m.ensureInit()
	doc, err := tokenizeReader(m.tokenizer, r)
	if err != nil {
		return err
	}
	return m.TrainCorpus(Corpus{Documents: [][]string{doc}})
}

// TrainCorpus records, for every window of order+1 tokens inside a single
// document, one observation of the first order tokens followed by the last.
// Windows never span documents, and documents shorter than order+1 tokens
// contribute nothing. The corpus is validated before any count changes.
func (m *Model) TrainCorpus(corpus Corpus) error {
	if m.order < 1 {
		return &InvalidOrderError{Order: m.order}
	}
	for i, doc := range corpus.Documents {
		for _, tok := range doc {
			if !utf8.ValidString(tok) || strings.Contains(tok, stateSep) {
				return fmt.Errorf("document %d: %w", i, invalidInput(fmt.Sprintf("token %q is not valid text", tok), nil))
			}
		}
	}
	m.ensureInit()

	var transitions int
	for _, doc := range corpus.Documents {
		transitions += m.trainDocument(doc)
	}

	m.logger.Debug("Training completed",
		slog.Int("documents_processed", len(corpus.Documents)),
		slog.Int("transitions_recorded", transitions),
		slog.Int("states", len(m.table)),
	)
	return nil
}

func (m *Model) trainDocument(doc []string) int {
	n := m.order
	if len(doc) < n+1 {
		return 0
	}
	m.addStart(doc[:n], 1)
	for i := 0; i+n < len(doc); i++ {
		state := State(doc[i : i+n])
		next := doc[i+n]
		m.addTransition(state, next, 1)

		// A sentence starts right after a terminal token when the window that
		// follows it still has a successor in this document.
		if m.sentenceStarts && i > 0 && m.tokenizer.Terminal(doc[i-1]) {
			m.addStart(state, 1)
		}
	}
	return len(doc) - n
}
