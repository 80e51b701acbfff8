package markov

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// DefaultMaxLength is the number of tokens generated when WithMaxLength is not given.
const DefaultMaxLength = 100

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	maxLength     int
	minLength     int
	canEndEarly   bool
	temperature   float64
	topK          int
	start         State
	startText     string
	hasStartText  bool
	rng           *rand.Rand
	keywords      map[string]struct{}
	keywordWeight int
}

func defaultGenerateOptions() *generateOptions {
	return &generateOptions{
		maxLength:   DefaultMaxLength,
		canEndEarly: true,
		temperature: 1.0,
	}
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in generation functions like Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithMaxLength sets the maximum number of tokens in the output, start tokens
// included. The generation may stop earlier if a terminal token is chosen and
// WithEarlyTermination is enabled.
func WithMaxLength(n int) GenerateOption {
	return func(o *generateOptions) { o.maxLength = n }
}

// WithMinLength keeps generation going past terminal tokens until the output
// holds at least n tokens. It has no effect when early termination is off.
func WithMinLength(n int) GenerateOption {
	return func(o *generateOptions) { o.minLength = n }
}

// WithEarlyTermination specifies whether the generation process can stop before
// reaching maxLength if a terminal token is generated.
func WithEarlyTermination(canEnd bool) GenerateOption {
	return func(o *generateOptions) { o.canEndEarly = canEnd }
}

// WithTemperature adjusts the randomness of the token selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 increase randomness (making less frequent tokens more likely).
// Values < 1.0 decrease randomness (making more frequent tokens even more likely).
// A value of 0 or less results in deterministic selection (always choosing the most frequent token).
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts the token selection pool to the top `k` most frequent tokens
// at each step. A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

// WithStart begins generation from the given tokens instead of a sampled start
// state. The tokens are part of the output; generation continues from the last
// order tokens. Fewer tokens than the model order is an *InvalidInputError.
func WithStart(state State) GenerateOption {
	return func(o *generateOptions) {
		o.start = append(State(nil), state...)
		o.hasStartText = false
	}
}

// WithStartText is like WithStart, with the start tokens taken from text using
// the model's tokenizer. An empty text behaves as if no start was given.
func WithStartText(text string) GenerateOption {
	return func(o *generateOptions) {
		o.startText = text
		o.hasStartText = true
		o.start = nil
	}
}

// WithSeed makes generation reproducible: the same seed, options and model
// always produce the same output.
func WithSeed(seed uint64) GenerateOption {
	return func(o *generateOptions) { o.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithRand sets the random source used for sampling. The source is not safe
// for concurrent use, so it must not be shared between concurrent calls.
func WithRand(r *rand.Rand) GenerateOption {
	return func(o *generateOptions) { o.rng = r }
}

// WithKeywords multiplies the weight of every successor that is one of words,
// and of every start state containing one of them, by weight. The model's
// counts are left untouched. A weight below 2 disables the boost.
func WithKeywords(weight int, words ...string) GenerateOption {
	return func(o *generateOptions) {
		if weight < 2 || len(words) == 0 {
			o.keywords = nil
			return
		}
		o.keywordWeight = weight
		o.keywords = make(map[string]struct{}, len(words))
		for _, w := range words {
			o.keywords[w] = struct{}{}
		}
	}
}

// Generate samples a token sequence and joins it into text with the model's
// tokenizer. An empty model produces "". See GenerateTokens.
func (m *Model) Generate(opts ...GenerateOption) (string, error) {
	tokens, err := m.GenerateTokens(opts...)
	if err != nil {
		return "", err
	}
	return Join(m.tokenizer, tokens), nil
}

// GenerateTokens samples a token sequence. Generation starts from the given
// start tokens, or from a start state drawn in proportion to how often it
// opened a document or sentence, and repeatedly draws a successor in
// proportion to its count. It stops when the output reaches the maximum
// length, when the current state has no successors, or when a terminal token
// is drawn and early termination is enabled.
//
// Errors are only returned for invalid options; dead ends and empty models
// are normal outcomes.
func (m *Model) GenerateTokens(opts ...GenerateOption) ([]string, error) {
	options, seed, err := m.prepareGeneration(opts)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, min(options.maxLength, 64))
	m.walk(options, seed, func(token string) bool {
		out = append(out, token)
		return true
	})
	return out, nil
}

// Join renders tokens as text using the tokenizer's separator rule.
func Join(t Tokenizer, tokens []string) string {
	var builder strings.Builder
	for i, token := range tokens {
		if i > 0 {
			builder.WriteString(t.Separator(tokens[i-1], token))
		}
		builder.WriteString(token)
	}
	return builder.String()
}

func (m *Model) prepareGeneration(opts []GenerateOption) (*generateOptions, State, error) {
	if m.order < 1 {
		return nil, nil, &InvalidOrderError{Order: m.order}
	}
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.maxLength < 0 {
		return nil, nil, invalidInput("max length must not be negative", nil)
	}
	if options.rng == nil {
		options.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	seed := options.start
	if options.hasStartText && options.startText != "" {
		tokenizer := m.tokenizer
		if tokenizer == nil {
			tokenizer = NewDefaultTokenizer()
		}
		doc, err := tokenizeReader(tokenizer, strings.NewReader(options.startText))
		if err != nil {
			return nil, nil, err
		}
		seed = doc
	}
	if len(seed) > 0 && len(seed) < m.order {
		return nil, nil, invalidInput("start state "+seed.String()+" is shorter than the model order", nil)
	}
	if len(seed) == 0 {
		seed = m.pickStart(options)
	}
	return options, seed, nil
}

// walk emits the seed and then sampled tokens until a stop condition is met
// or emit returns false.
func (m *Model) walk(options *generateOptions, seed State, emit func(string) bool) {
	generated := 0
	for _, token := range seed {
		if generated >= options.maxLength {
			return
		}
		if !emit(token) {
			return
		}
		generated++
	}
	if len(seed) < m.order {
		return
	}

	state := make(State, m.order)
	copy(state, seed[len(seed)-m.order:])

	for generated < options.maxLength {
		e, ok := m.table[state.key()]
		if !ok {
			m.logger.Debug("Generation terminated due to dead-end",
				slog.String("last_state", state.String()),
				slog.Int("generated_length", generated),
			)
			return
		}

		next := chooseNextToken(e.successors, e.total, options)
		if !emit(next) {
			return
		}
		generated++

		if options.canEndEarly && generated >= options.minLength && m.tokenizer.Terminal(next) {
			m.logger.Debug("Generation terminated by EOC token",
				slog.Int("generated_length", generated),
			)
			return
		}

		copy(state, state[1:])
		state[len(state)-1] = next
	}
	m.logger.Debug("Generation terminated by reaching maxLength",
		slog.Int("max_length", options.maxLength),
		slog.Int("generated_length", generated),
	)
}

// pickStart draws a start state weighted by its start count. It returns nil
// when the model has no start states.
func (m *Model) pickStart(options *generateOptions) State {
	if m.startTotal == 0 {
		return nil
	}
	if options.keywords == nil {
		r := options.rng.IntN(m.startTotal)
		for _, k := range m.startKeys {
			s := m.starts[k]
			r -= s.count
			if r < 0 {
				return s.state
			}
		}
		return nil
	}

	weights := make([]int, len(m.startKeys))
	total := 0
	for i, k := range m.startKeys {
		s := m.starts[k]
		w := s.count
		for _, token := range s.state {
			if _, ok := options.keywords[token]; ok {
				w *= options.keywordWeight
				break
			}
		}
		weights[i] = w
		total += w
	}
	r := options.rng.IntN(total)
	for i, k := range m.startKeys {
		r -= weights[i]
		if r < 0 {
			return m.starts[k].state
		}
	}
	return nil
}

// chooseNextToken abstracts the token selection logic from the generation loop.
// choices must be sorted by token and is never modified.
func chooseNextToken(choices []Successor, totalFreq int, options *generateOptions) string {
	if options.keywords != nil || (options.topK > 0 && options.topK < len(choices)) {
		weighted := make([]Successor, len(choices))
		copy(weighted, choices)
		choices = weighted
	}

	if options.keywords != nil {
		totalFreq = 0
		for i := range choices {
			if _, ok := options.keywords[choices[i].Token]; ok {
				choices[i].Count *= options.keywordWeight
			}
			totalFreq += choices[i].Count
		}
	}

	// topK filtering
	if options.topK > 0 && options.topK < len(choices) {
		sort.SliceStable(choices, func(i, j int) bool {
			return choices[i].Count > choices[j].Count
		})
		choices = choices[:options.topK]
		totalFreq = 0
		for _, choice := range choices {
			totalFreq += choice.Count
		}
	}

	var nextToken string
	if options.temperature <= 0 { // Deterministic
		maxFreq := -1
		for _, choice := range choices {
			if choice.Count > maxFreq {
				maxFreq = choice.Count
				nextToken = choice.Token
			}
		}
	} else if options.temperature == 1.0 { // Standard weighted random
		randChoice := options.rng.IntN(totalFreq)
		for _, choice := range choices {
			randChoice -= choice.Count
			if randChoice < 0 {
				nextToken = choice.Token
				break
			}
		}
	} else { // Temperature-based sampling
		logProbabilities := make([]float64, len(choices))
		epsilon := math.Inf(-1)
		for i, choice := range choices {
			lp := math.Log(float64(choice.Count)) / options.temperature
			logProbabilities[i] = lp
			if lp > epsilon {
				epsilon = lp
			}
		}
		var totalWeight float64
		weights := make([]float64, len(choices))
		for i, lp := range logProbabilities {
			w := math.Exp(lp - epsilon)
			weights[i] = w
			totalWeight += w
		}
		randChoice := options.rng.Float64() * totalWeight
		nextToken = choices[len(choices)-1].Token
		for i, choice := range choices {
			randChoice -= weights[i]
			if randChoice < 0 {
				nextToken = choice.Token
				break
			}
		}
	}
	return nextToken
}
