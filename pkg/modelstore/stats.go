package modelstore

import (
	"context"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models     []ModelInfo        `json:"models"`      // A list of models in the database
	Stats      map[int]ModelStats `json:"stats"`       // A mapping of model ids to their stats
	VocabSize  int                `json:"vocab_size"`  // The number of unique tokens in all models' vocabularies
	PrefixSize int                `json:"prefix_size"` // The number of unique prefixes in all models' chains
}

// ModelStats holds aggregated statistics for a single stored model.
type ModelStats struct {
	TotalChains    int `json:"total_chains"`    // The number of unique prefix->next_token links.
	TotalFrequency int `json:"total_frequency"` // The sum of frequencies of all links; the total number of trained transitions.
	StartStates    int `json:"start_states"`    // The number of prefixes a generation may begin from.
}

// GetStats returns a snapshot of statistics for the entire database,
// including global counts and per-model stats. Models are sorted by name.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	var models []ModelInfo
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.Order); err != nil {
			_ = rows.Close()
			return nil, err
		}
		models = append(models, model)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	var vocabLen int
	err = s.stmtGetVocabLen.QueryRowContext(ctx).Scan(&vocabLen)
	if err != nil {
		return nil, err
	}

	var prefixLen int
	err = s.stmtGetPrefixLen.QueryRowContext(ctx).Scan(&prefixLen)
	if err != nil {
		return nil, err
	}

	modelStats := make(map[int]ModelStats)
	for _, v := range models {
		stats, err := s.GetModelStats(ctx, v)
		if err != nil {
			return nil, err
		}
		modelStats[v.Id] = stats
	}

	return &DBStats{
		Models:     models,
		Stats:      modelStats,
		VocabSize:  vocabLen,
		PrefixSize: prefixLen,
	}, nil
}

// GetModelStats returns the statistics of a single stored model.
func (s *Store) GetModelStats(ctx context.Context, model ModelInfo) (ModelStats, error) {
	var stats ModelStats
	if err := s.stmtModelChains.QueryRowContext(ctx, model.Id).Scan(&stats.TotalChains); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelFreq.QueryRowContext(ctx, model.Id).Scan(&stats.TotalFrequency); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelStarts.QueryRowContext(ctx, model.Id).Scan(&stats.StartStates); err != nil {
		return ModelStats{}, err
	}
	return stats, nil
}
