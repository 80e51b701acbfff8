package markov

import (
	"io"
	"log/slog"
	"sort"
)

// stateEntry holds every successor observed after one State. Successors are
// kept sorted by token text so iteration order never depends on the order in
// which documents were trained.
type stateEntry struct {
	state      State
	successors []Successor
	total      int
}

func (e *stateEntry) add(token string, count int) {
	i := sort.Search(len(e.successors), func(i int) bool {
		return e.successors[i].Token >= token
	})
	if i < len(e.successors) && e.successors[i].Token == token {
		e.successors[i].Count += count
	} else {
		e.successors = append(e.successors, Successor{})
		copy(e.successors[i+1:], e.successors[i:])
		e.successors[i] = Successor{Token: token, Count: count}
	}
	e.total += count
}

type startEntry struct {
	state State
	count int
}

// Model is an order-N Markov chain over string tokens. It owns the transition
// table (State -> successor counts), the table of start states and the
// tokenizer used to ingest and render text.
//
// A Model is not safe for concurrent use. Generation only reads the tables, so
// concurrent generation is safe as long as no training runs at the same time;
// callers that train and generate from several goroutines must guard the
// Model with a sync.RWMutex.
type Model struct {
	order          int
	tokenizer      Tokenizer
	sentenceStarts bool
	table          map[string]*stateEntry
	starts         map[string]*startEntry
	startKeys      []string // sorted keys of starts
	startTotal     int
	logger         *slog.Logger
}

// ModelOption configures a Model at construction time.
type ModelOption func(*Model)

// WithTokenizer sets the tokenizer used for training and rendering.
// Default: NewDefaultTokenizer()
func WithTokenizer(t Tokenizer) ModelOption {
	return func(m *Model) {
		if t != nil {
			m.tokenizer = t
		}
	}
}

// WithSentenceStarts controls whether the state following a terminal token is
// recorded as a start state in addition to the first state of each document.
// Default: true
func WithSentenceStarts(enabled bool) ModelOption {
	return func(m *Model) {
		m.sentenceStarts = enabled
	}
}

// WithLogger sets the logger for the Model. See SetLogger.
func WithLogger(logger *slog.Logger) ModelOption {
	return func(m *Model) {
		m.SetLogger(logger)
	}
}

// NewModel creates an empty model of the given order. It returns an
// *InvalidOrderError if order is below 1.
func NewModel(order int, opts ...ModelOption) (*Model, error) {
	if order < 1 {
		return nil, &InvalidOrderError{Order: order}
	}
	m := &Model{
		order:          order,
		tokenizer:      NewDefaultTokenizer(),
		sentenceStarts: true,
		table:          make(map[string]*stateEntry),
		starts:         make(map[string]*startEntry),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SetLogger sets the logger for the Model. By default, all logs are discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Order returns the number of tokens in a State.
func (m *Model) Order() int {
	return m.order
}

// Tokenizer returns the tokenizer the model was built with.
func (m *Model) Tokenizer() Tokenizer {
	return m.tokenizer
}

// Successors returns a copy of the successors recorded for state, sorted by
// token, along with the sum of their counts. An unknown state yields nil, 0.
func (m *Model) Successors(state State) ([]Successor, int) {
	e, ok := m.table[state.key()]
	if !ok {
		return nil, 0
	}
	out := make([]Successor, len(e.successors))
	copy(out, e.successors)
	return out, e.total
}

// StartCount returns how many times state was recorded as a start state.
func (m *Model) StartCount(state State) int {
	if s, ok := m.starts[state.key()]; ok {
		return s.count
	}
	return 0
}

// Empty reports whether the transition table has no states.
func (m *Model) Empty() bool {
	return len(m.table) == 0
}

// ensureInit lazily builds the maps so that a zero Model fails on order
// validation instead of panicking on a nil map.
func (m *Model) ensureInit() {
	if m.table == nil {
		m.table = make(map[string]*stateEntry)
	}
	if m.starts == nil {
		m.starts = make(map[string]*startEntry)
	}
	if m.tokenizer == nil {
		m.tokenizer = NewDefaultTokenizer()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

func (m *Model) addTransition(state State, next string, count int) {
	k := state.key()
	e, ok := m.table[k]
	if !ok {
		e = &stateEntry{state: append(State(nil), state...)}
		m.table[k] = e
	}
	e.add(next, count)
}

func (m *Model) addStart(state State, count int) {
	k := state.key()
	s, ok := m.starts[k]
	if !ok {
		s = &startEntry{state: append(State(nil), state...)}
		m.starts[k] = s
		i := sort.SearchStrings(m.startKeys, k)
		m.startKeys = append(m.startKeys, "")
		copy(m.startKeys[i+1:], m.startKeys[i:])
		m.startKeys[i] = k
	}
	s.count += count
	m.startTotal += count
}

// sortedStateKeys returns the table keys in ascending order.
func (m *Model) sortedStateKeys() []string {
	keys := make([]string, 0, len(m.table))
	for k := range m.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
