package markov

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// maxChunkSize bounds a single whitespace-free run handed to the regex
// splitter. Longer runs are cut at a rune boundary.
const maxChunkSize = 64 * 1024

// DefaultTokenizer is a default implementation of the Tokenizer interface.
// It uses regular expressions to split text into words and punctuation,
// and identifies sentence-ending punctuation as End-Of-Chain (EOC) tokens.
// Its behavior can be customized with functional options.
type DefaultTokenizer struct {
	separator         string
	separatorRegex    *regexp.Regexp
	eocRegex          *regexp.Regexp
	separatorExcRegex *regexp.Regexp
	openerRegex       *regexp.Regexp
	abbreviations     map[string]struct{}
}

// DefaultAbbreviations are the tokens that never end a sentence by default.
var DefaultAbbreviations = []string{"U.S.", "U.N.", "E.U.", "F.B.I.", "C.I.A."}

// Option Is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithSeparator Sets the string used for joining tokens during generation.
// Default: " "
func WithSeparator(sep string) Option {
	return func(t *DefaultTokenizer) {
		t.separator = sep
	}
}

// WithSeparatorRegex sets the regex string to use when splitting input text.
// Every match is a token; text between matches is dropped.
// Default: `(?:\p{Lu}\.){2,}|[\p{L}\p{M}\p{N}_'’]+|[^\s\p{L}\p{M}\p{N}_'’]`
func WithSeparatorRegex(splitRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.separatorRegex = regexp.MustCompile(splitRegex)
	}
}

// WithEOCRegex sets the regex string to use when deciding whether a token is an EOC token or not.
// Default: `^[.!?]$`
func WithEOCRegex(eocRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.eocRegex = regexp.MustCompile(eocRegex)
	}
}

// WithAbbreviations replaces the list of tokens that are never terminal, even
// when they match the EOC regex.
// Default: DefaultAbbreviations
func WithAbbreviations(abbreviations ...string) Option {
	return func(t *DefaultTokenizer) {
		t.abbreviations = makeSet(abbreviations)
	}
}

// WithSeparatorExcRegex sets the regex string to use when deciding whether to add a separator before a token.
// Default: `^[.,!?;:%)\]}”’…]`
func WithSeparatorExcRegex(splitExcRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.separatorExcRegex = regexp.MustCompile(splitExcRegex)
	}
}

// WithOpenerRegex sets the regex string to use when deciding whether to omit the separator after a token.
// Default: `^[(\[{“$#]$`
func WithOpenerRegex(openerRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.openerRegex = regexp.MustCompile(openerRegex)
	}
}

// NewDefaultTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{
		separator: " ",
		// Dotted abbreviations like "U.S.", then runs of word characters
		// (apostrophes included, so "don't" stays whole), then any single
		// character that is neither a word character nor whitespace.
		separatorRegex: regexp.MustCompile(`(?:\p{Lu}\.){2,}|[\p{L}\p{M}\p{N}_'’]+|[^\s\p{L}\p{M}\p{N}_'’]`),
		eocRegex:       regexp.MustCompile(`^[.!?]$`),
		// Closing punctuation is glued to the previous token.
		separatorExcRegex: regexp.MustCompile(`^[.,!?;:%)\]}”’…]`),
		// Opening punctuation is glued to the next token.
		openerRegex:   regexp.MustCompile(`^[(\[{“$#]$`),
		abbreviations: makeSet(DefaultAbbreviations),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Separator Returns the configured separator string, or "" when current is
// closing punctuation or prev is opening punctuation.
func (t *DefaultTokenizer) Separator(prev, current string) string {
	if t.separatorExcRegex.MatchString(current) || t.openerRegex.MatchString(prev) {
		return ""
	}
	return t.separator
}

// Terminal reports whether token matches the EOC regex and is not a known
// abbreviation.
func (t *DefaultTokenizer) Terminal(token string) bool {
	if _, ok := t.abbreviations[token]; ok {
		return false
	}
	return t.eocRegex.MatchString(token)
}

func makeSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// NewStream Returns the stream processor.
func (t *DefaultTokenizer) NewStream(r io.Reader) StreamTokenizer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxChunkSize)
	scanner.Split(scanChunks)
	return &DefaultStreamTokenizer{
		scanner:    scanner,
		buffer:     []string{},
		splitRegex: t.separatorRegex,
		terminal:   t.Terminal,
	}
}

// DefaultStreamTokenizer is the default implementation of the StreamTokenizer interface.
// It reads whitespace-delimited chunks with a bufio.Scanner and splits each one
// with the separator regex, so line length does not matter.
type DefaultStreamTokenizer struct {
	scanner    *bufio.Scanner
	buffer     []string
	splitRegex *regexp.Regexp
	terminal   func(string) bool
}

// Next returns the next token from the stream. It returns a Token and a nil error on
// success. When the stream is exhausted, it returns a nil Token and io.EOF.
// Chunks that are not valid UTF-8 or contain NUL bytes yield an *InvalidInputError.
// Any other error indicates a problem reading from the underlying stream.
func (s *DefaultStreamTokenizer) Next() (*Token, error) {
	for len(s.buffer) == 0 { // Loop until we have tokens
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		chunk := s.scanner.Bytes()
		if err := validateText(chunk); err != nil {
			return nil, err
		}
		s.buffer = s.splitRegex.FindAllString(string(chunk), -1)
	}

	word := s.buffer[0]
	s.buffer = s.buffer[1:]

	return &Token{Text: word, EOC: s.terminal(word)}, nil
}

// scanChunks is bufio.ScanWords, except that a run that fills the buffer is
// returned as is instead of failing with bufio.ErrTooLong. Invalid UTF-8 is
// kept in the chunk for validateText to reject.
func scanChunks(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, width := utf8.DecodeRune(data[start:])
		if !unicode.IsSpace(r) {
			break
		}
		start += width
	}
	for i := start; i < len(data); {
		r, width := utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) {
			return i + width, data[start:i], nil
		}
		i += width
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	if len(data)-start >= maxChunkSize/2 {
		end := len(data) - 1
		for end > start && end > len(data)-utf8.UTFMax && !utf8.RuneStart(data[end]) {
			end--
		}
		if end <= start {
			end = len(data)
		}
		return end, data[start:end], nil
	}
	return start, nil, nil
}

func validateText(b []byte) error {
	if !utf8.Valid(b) {
		return invalidInput("text is not valid UTF-8", nil)
	}
	if bytes.IndexByte(b, 0) >= 0 {
		return invalidInput("text contains NUL bytes", nil)
	}
	return nil
}
