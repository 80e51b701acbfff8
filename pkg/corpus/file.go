package corpus

import (
	"context"
	"fmt"
	"os"
	"regexp"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// FileSource reads documents from a plain text file. By default the whole
// file is a single document with all whitespace collapsed to single spaces.
// With Paragraphs set, every block separated by a blank line is a document.
type FileSource struct {
	Path       string
	Paragraphs bool
}

// Documents reads the file. A missing file yields an error wrapping
// fs.ErrNotExist.
func (f FileSource) Documents(_ context.Context) ([]string, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("could not read corpus file: %w", err)
	}
	text := string(raw)

	if !f.Paragraphs {
		if doc := collapse(text); doc != "" {
			return []string{doc}, nil
		}
		return nil, nil
	}

	var docs []string
	for _, block := range blankLines.Split(text, -1) {
		if doc := collapse(block); doc != "" {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Name returns the file path.
func (f FileSource) Name() string {
	return "file:" + f.Path
}
