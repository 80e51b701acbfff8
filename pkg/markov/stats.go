package markov

// ModelStats holds aggregated statistics for a single Markov model.
type ModelStats struct {
	Order          int `json:"order"`           // Tokens per state.
	States         int `json:"states"`          // Distinct states with at least one successor.
	TotalChains    int `json:"total_chains"`    // The number of unique state->next_token links.
	TotalFrequency int `json:"total_frequency"` // The sum of all link counts; the number of trained transitions.
	StartStates    int `json:"start_states"`    // Distinct states generation may begin from.
	Vocabulary     int `json:"vocabulary"`      // Distinct tokens appearing in states or successors.
}

// Stats returns a snapshot of the model's size.
func (m *Model) Stats() ModelStats {
	stats := ModelStats{
		Order:       m.order,
		States:      len(m.table),
		StartStates: len(m.startKeys),
	}
	vocab := make(map[string]struct{})
	for _, e := range m.table {
		stats.TotalChains += len(e.successors)
		stats.TotalFrequency += e.total
		for _, token := range e.state {
			vocab[token] = struct{}{}
		}
		for _, s := range e.successors {
			vocab[s.Token] = struct{}{}
		}
	}
	stats.Vocabulary = len(vocab)
	return stats
}
