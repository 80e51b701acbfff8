package markov

import (
	"context"
)

// GenerateStream generates like GenerateTokens and returns a read-only channel of Tokens.
// This allows for processing the generated text token-by-token, which is useful for
// real-time applications or when generating very long sequences. Each Token's Text
// is prefixed with the separator that joins it to the previous token, so
// concatenating all Texts yields the same string Generate would return. The channel
// will be closed once generation is complete or the context is cancelled.
//
// The model must not be trained while a stream is being consumed.
func (m *Model) GenerateStream(ctx context.Context, opts ...GenerateOption) (<-chan Token, error) {
	options, seed, err := m.prepareGeneration(opts)
	if err != nil {
		return nil, err
	}

	tokenChan := make(chan Token)

	go func() {
		defer close(tokenChan)

		var lastWord string
		firstWord := true

		m.walk(options, seed, func(text string) bool {
			if ctx.Err() != nil {
				return false
			}
			var separator string
			if !firstWord {
				separator = m.tokenizer.Separator(lastWord, text)
			}
			firstWord = false
			lastWord = text

			select {
			case <-ctx.Done():
				m.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return false
			case tokenChan <- Token{Text: separator + text, EOC: m.tokenizer.Terminal(text)}:
				return true
			}
		})
	}()

	return tokenChan, nil
}
