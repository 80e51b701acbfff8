package markov

import (
	"log/slog"
)

// Prune removes every transition whose count is at or below minFreq. States
// left without successors are removed, and so are start states that no longer
// lead anywhere. It returns the number of transitions removed.
func (m *Model) Prune(minFreq int) int {
	if minFreq < 1 || len(m.table) == 0 {
		return 0
	}
	removed := 0
	for k, e := range m.table {
		kept := e.successors[:0]
		total := 0
		for _, s := range e.successors {
			if s.Count <= minFreq {
				removed++
				continue
			}
			kept = append(kept, s)
			total += s.Count
		}
		if len(kept) == 0 {
			delete(m.table, k)
			continue
		}
		e.successors = kept
		e.total = total
	}
	m.dropOrphanStarts()

	m.logger.Info("Model pruned",
		slog.Int("min_frequency", minFreq),
		slog.Int("chains_removed", removed),
		slog.Int("states_remaining", len(m.table)),
	)
	return removed
}

// PruneVocabulary removes tokens whose total count as a successor is below
// minFreq, along with every transition and state that mentions them. It
// returns the number of tokens removed.
func (m *Model) PruneVocabulary(minFreq int) int {
	if minFreq < 1 || len(m.table) == 0 {
		return 0
	}

	usage := make(map[string]int)
	for _, e := range m.table {
		for _, s := range e.successors {
			usage[s.Token] += s.Count
		}
	}
	rare := make(map[string]struct{})
	for token, count := range usage {
		if count < minFreq {
			rare[token] = struct{}{}
		}
	}
	if len(rare) == 0 {
		return 0
	}

	mentionsRare := func(state State) bool {
		for _, token := range state {
			if _, ok := rare[token]; ok {
				return true
			}
		}
		return false
	}

	chainsRemoved := 0
	for k, e := range m.table {
		if mentionsRare(e.state) {
			chainsRemoved += len(e.successors)
			delete(m.table, k)
			continue
		}
		kept := e.successors[:0]
		total := 0
		for _, s := range e.successors {
			if _, ok := rare[s.Token]; ok {
				chainsRemoved++
				continue
			}
			kept = append(kept, s)
			total += s.Count
		}
		if len(kept) == 0 {
			delete(m.table, k)
			continue
		}
		e.successors = kept
		e.total = total
	}
	m.dropOrphanStarts()

	m.logger.Info("Vocabulary pruning complete",
		slog.Int("min_frequency", minFreq),
		slog.Int("tokens_removed", len(rare)),
		slog.Int("chains_removed", chainsRemoved),
	)
	return len(rare)
}

// dropOrphanStarts removes start states that have no entry in the transition
// table and rebuilds the start total.
func (m *Model) dropOrphanStarts() {
	keys := m.startKeys[:0]
	total := 0
	for _, k := range m.startKeys {
		if _, ok := m.table[k]; !ok {
			delete(m.starts, k)
			continue
		}
		keys = append(keys, k)
		total += m.starts[k].count
	}
	m.startKeys = keys
	m.startTotal = total
}
