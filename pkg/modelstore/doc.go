// Package modelstore persists markov models in SQLite. Each model is stored
// as rows of (prefix, next token, frequency) plus its start states, with
// tokens and prefixes deduplicated across all models in the database.
package modelstore
