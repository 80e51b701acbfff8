/*
Package markov provides an order-N Markov chain text generator.

A Model counts, for every run of N consecutive tokens (a State) observed in a
training document, which token followed it. Generation starts from a State
drawn in proportion to how often it opened a document or sentence and
repeatedly draws a successor in proportion to its count, stopping at a
maximum length, at a State with no successors, or after a terminal token.

Documents are independent: transitions never span document boundaries.
Successors and start states are kept in sorted order, so a model trained on
the same documents in any order generates identical output for the same seed.

Text is split into tokens by a Tokenizer. The DefaultTokenizer splits words and
punctuation with regular expressions and rejoins them with natural spacing;
CharTokenizer treats every rune as a token. Sampling can be shaped with
temperature, top-K filtering and keyword weighting, and a Model can be exported
to JSON, merged with another model of the same order, or pruned.

Basic usage:

	m, err := markov.NewModel(2)
	if err != nil {
		return err
	}
	if err := m.Train("one fish two fish. red fish blue fish."); err != nil {
		return err
	}
	text, err := m.Generate(markov.WithSeed(42), markov.WithMaxLength(20))
*/
package markov
