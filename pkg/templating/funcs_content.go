package templating

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/CTAG07/Markiavelli/pkg/markov"
)

// markovSentence generates a sentence of at most maxLength tokens from a named model.
func (tm *TemplateManager) markovSentence(modelName string, maxLength int) (string, error) {
	if tm.generator == nil {
		return "", fmt.Errorf("markovSentence: no generator configured")
	}
	maxLength = clamp(maxLength, 1, tm.config.MaxSentenceLength)

	sentence, err := tm.generator.GenerateText(modelName,
		markov.WithMaxLength(maxLength),
		markov.WithEarlyTermination(true),
	)
	if err != nil {
		tm.logger.Error("markovSentence: generation failed", "model", modelName, "error", err)
		return "", fmt.Errorf("markovSentence: %w", err)
	}
	return capitalize(sentence), nil
}

// markovParagraphs generates count paragraphs of thematic text. Each paragraph
// has between minSentences and maxSentences sentences, each between minLength
// and maxLength tokens long. Paragraphs are separated by a blank line.
func (tm *TemplateManager) markovParagraphs(modelName string, count, minSentences, maxSentences, minLength, maxLength int) (string, error) {
	count = clamp(count, 0, tm.config.MaxParagraphs)
	maxSentences = clamp(maxSentences, 1, tm.config.MaxSentences)
	minSentences = clamp(minSentences, 1, maxSentences)
	maxLength = clamp(maxLength, 1, tm.config.MaxSentenceLength)
	minLength = clamp(minLength, 1, maxLength)

	var builder strings.Builder
	for i := 0; i < count; i++ {
		numSentences := randomInt(minSentences, maxSentences+1)
		for j := 0; j < numSentences; j++ {
			sentence, err := tm.markovSentence(modelName, randomInt(minLength, maxLength+1))
			if err != nil {
				return "", err
			}
			if sentence == "" {
				continue
			}
			if j > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(sentence)
		}
		if i < count-1 {
			builder.WriteString("\n\n")
		}
	}
	return builder.String(), nil
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
