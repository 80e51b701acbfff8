package templating

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// MaxParagraphs sets a hard upper limit on the count passed to markovParagraphs.
	MaxParagraphs int `json:"max_paragraphs" yaml:"max_paragraphs"`

	// MaxSentences sets a hard upper limit on the sentences per paragraph.
	MaxSentences int `json:"max_sentences" yaml:"max_sentences"`

	// MaxSentenceLength sets a hard upper limit on the tokens per sentence.
	MaxSentenceLength int `json:"max_sentence_length" yaml:"max_sentence_length"`

	// MaxRepeat sets a hard upper limit on the count passed to repeat.
	MaxRepeat int `json:"max_repeat" yaml:"max_repeat"`
}

// DefaultConfig returns a TemplateConfig with safe default values.
func DefaultConfig() TemplateConfig {
	return TemplateConfig{
		MaxParagraphs:     20,
		MaxSentences:      15,
		MaxSentenceLength: 100,
		MaxRepeat:         100,
	}
}
