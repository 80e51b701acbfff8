// Package corpus provides the document sources a model is trained from: plain
// text files, a SQLite database of collected comments, and Redis lists.
package corpus

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Source yields an ordered sequence of text documents. Each document is
// trained independently, so no transition spans two documents.
type Source interface {
	// Documents returns every document of the source in a stable order.
	Documents(ctx context.Context) ([]string, error)
	// Name describes the source in logs and errors.
	Name() string
}

var whitespace = regexp.MustCompile(`\s+`)

// collapse replaces every run of whitespace with a single space and trims the
// result.
func collapse(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// Static is a Source over an in-memory list of documents.
type Static []string

// Documents returns a copy of the list.
func (s Static) Documents(_ context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Name returns "static".
func (s Static) Name() string {
	return "static"
}

type multi []Source

// Multi concatenates the documents of several sources, in order.
func Multi(sources ...Source) Source {
	return multi(sources)
}

func (m multi) Documents(ctx context.Context) ([]string, error) {
	var docs []string
	for _, src := range m {
		d, err := src.Documents(ctx)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		docs = append(docs, d...)
	}
	return docs, nil
}

func (m multi) Name() string {
	names := make([]string, len(m))
	for i, src := range m {
		names[i] = src.Name()
	}
	return "multi(" + strings.Join(names, ", ") + ")"
}
