package markov

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// ExportedModel is the serializable representation of a trained model,
// used for JSON-based import and export. Prefixes and tokens refer to
// positions in Vocabulary.
type ExportedModel struct {
	Name       string          `json:"name,omitempty"`
	Order      int             `json:"order"`
	Vocabulary []string        `json:"vocabulary"`
	Chains     []ExportedChain `json:"chains"`
	Starts     []ExportedStart `json:"starts"`
}

// ExportedChain is the serializable representation of a single link
// in a Markov chain, used within an ExportedModel.
type ExportedChain struct {
	Prefix      []int `json:"prefix"`
	NextTokenID int   `json:"next_token_id"`
	Frequency   int   `json:"frequency"`
}

// ExportedStart records how often a prefix opened a document or sentence.
type ExportedStart struct {
	Prefix    []int `json:"prefix"`
	Frequency int   `json:"frequency"`
}

// Snapshot returns the model's tables in serializable form. States,
// successors and starts appear in sorted order so equal models produce equal
// snapshots.
func (m *Model) Snapshot() *ExportedModel {
	exported := &ExportedModel{Order: m.order}
	vocabIDs := make(map[string]int)
	id := func(token string) int {
		if i, ok := vocabIDs[token]; ok {
			return i
		}
		i := len(exported.Vocabulary)
		vocabIDs[token] = i
		exported.Vocabulary = append(exported.Vocabulary, token)
		return i
	}
	prefix := func(state State) []int {
		ids := make([]int, len(state))
		for i, token := range state {
			ids[i] = id(token)
		}
		return ids
	}

	for _, k := range m.sortedStateKeys() {
		e := m.table[k]
		p := prefix(e.state)
		for _, s := range e.successors {
			exported.Chains = append(exported.Chains, ExportedChain{
				Prefix:      p,
				NextTokenID: id(s.Token),
				Frequency:   s.Count,
			})
		}
	}
	for _, k := range m.startKeys {
		s := m.starts[k]
		exported.Starts = append(exported.Starts, ExportedStart{
			Prefix:    prefix(s.state),
			Frequency: s.count,
		})
	}
	return exported
}

// Merge adds the counts of an exported model to this model. Frequencies of
// links already present are summed. The exported model is validated in full
// before anything changes: an order mismatch yields an *InvalidOrderError and
// dangling vocabulary references or non-positive frequencies yield an
// *InvalidInputError.
func (m *Model) Merge(exported *ExportedModel) error {
	if m.order < 1 {
		return &InvalidOrderError{Order: m.order}
	}
	if exported == nil {
		return invalidInput("no model to merge", nil)
	}
	if exported.Order != m.order {
		return &InvalidOrderError{Order: exported.Order, Expected: m.order}
	}

	resolve := func(ids []int) (State, error) {
		if len(ids) != m.order {
			return nil, invalidInput(fmt.Sprintf("prefix has %d tokens, model order is %d", len(ids), m.order), nil)
		}
		state := make(State, len(ids))
		for i, id := range ids {
			if id < 0 || id >= len(exported.Vocabulary) {
				return nil, invalidInput(fmt.Sprintf("token id %d not found in vocabulary", id), nil)
			}
			state[i] = exported.Vocabulary[id]
		}
		return state, nil
	}

	type link struct {
		state State
		next  string
		freq  int
	}
	links := make([]link, 0, len(exported.Chains))
	for _, chain := range exported.Chains {
		state, err := resolve(chain.Prefix)
		if err != nil {
			return err
		}
		if chain.NextTokenID < 0 || chain.NextTokenID >= len(exported.Vocabulary) {
			return invalidInput(fmt.Sprintf("token id %d not found in vocabulary", chain.NextTokenID), nil)
		}
		if chain.Frequency < 1 {
			return invalidInput(fmt.Sprintf("chain frequency %d must be positive", chain.Frequency), nil)
		}
		links = append(links, link{state: state, next: exported.Vocabulary[chain.NextTokenID], freq: chain.Frequency})
	}
	starts := make([]link, 0, len(exported.Starts))
	for _, start := range exported.Starts {
		state, err := resolve(start.Prefix)
		if err != nil {
			return err
		}
		if start.Frequency < 1 {
			return invalidInput(fmt.Sprintf("start frequency %d must be positive", start.Frequency), nil)
		}
		starts = append(starts, link{state: state, freq: start.Frequency})
	}
	for _, token := range exported.Vocabulary {
		if err := validateText([]byte(token)); err != nil {
			return err
		}
	}

	m.ensureInit()
	for _, l := range links {
		m.addTransition(l.state, l.next, l.freq)
	}
	for _, s := range starts {
		m.addStart(s.state, s.freq)
	}
	m.dropOrphanStarts()

	m.logger.Info("Model merged",
		slog.String("model_name", exported.Name),
		slog.Int("vocab_items_merged", len(exported.Vocabulary)),
		slog.Int("chains_merged", len(exported.Chains)),
		slog.Int("starts_merged", len(exported.Starts)),
	)
	return nil
}

// Export serializes the model as indented JSON. name is recorded in the
// output and may be empty.
func (m *Model) Export(w io.Writer, name string) error {
	exported := m.Snapshot()
	exported.Name = name

	m.logger.Info("Model exported",
		slog.String("model_name", name),
		slog.Int("vocab_items_exported", len(exported.Vocabulary)),
		slog.Int("chains_exported", len(exported.Chains)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// Import reads a JSON model written by Export and merges it into m.
func (m *Model) Import(r io.Reader) error {
	exported, err := DecodeExported(r)
	if err != nil {
		return err
	}
	return m.Merge(exported)
}

// DecodeExported reads a JSON model written by Export.
func DecodeExported(r io.Reader) (*ExportedModel, error) {
	var exported ExportedModel
	if err := json.NewDecoder(r).Decode(&exported); err != nil {
		return nil, invalidInput("failed to decode json model", err)
	}
	return &exported, nil
}

// Load builds a new model from a JSON model written by Export, using the
// order recorded in it.
func Load(r io.Reader, opts ...ModelOption) (*Model, string, error) {
	exported, err := DecodeExported(r)
	if err != nil {
		return nil, "", err
	}
	m, err := NewModel(exported.Order, opts...)
	if err != nil {
		return nil, "", err
	}
	if err = m.Merge(exported); err != nil {
		return nil, "", err
	}
	return m, exported.Name, nil
}
