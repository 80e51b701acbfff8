package templating

import (
	"fmt"

	"github.com/CTAG07/Markiavelli/pkg/markov"
)

// Generator produces text from a named model. Implementations must be safe
// for concurrent use when templates are executed concurrently.
type Generator interface {
	GenerateText(model string, opts ...markov.GenerateOption) (string, error)
}

// ModelMap is a Generator over a fixed set of in-memory models. The models
// must not be trained while templates are executing.
type ModelMap map[string]*markov.Model

// GenerateText generates from the named model. An unknown name is an error.
func (mm ModelMap) GenerateText(model string, opts ...markov.GenerateOption) (string, error) {
	m, ok := mm[model]
	if !ok {
		return "", fmt.Errorf("model '%s' not found", model)
	}
	return m.Generate(opts...)
}
