package modelstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// SQLite's default variable limit is 999, so around half that is good
const batchSize = 500

// Prune removes all chain links from a specific model that have a frequency
// less than or equal to minFreq, along with start states that no longer lead
// anywhere. It returns the number of chain links removed.
func (s *Store) Prune(ctx context.Context, model ModelInfo, minFreq int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction for pruning: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	res, err := tx.StmtContext(ctx, s.stmtPruneModel).ExecContext(ctx, model.Id, minFreq)
	if err != nil {
		return 0, fmt.Errorf("could not prune model %d: %w", model.Id, err)
	}
	rowsAffected, _ := res.RowsAffected()

	res, err = tx.StmtContext(ctx, s.stmtPruneStarts).ExecContext(ctx, model.Id)
	if err != nil {
		return 0, fmt.Errorf("could not prune starts of model %d: %w", model.Id, err)
	}
	startsRemoved, _ := res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("min_frequency", minFreq),
		slog.Int64("chains_removed", rowsAffected),
		slog.Int64("starts_removed", startsRemoved),
	)
	return rowsAffected, nil
}

// VocabularyPrune performs a database-wide cleanup, removing tokens from the
// global vocabulary that are used less than minFrequency times across all models.
// This is a destructive operation that will also delete all chain links, start
// states and prefixes that rely on the removed tokens. It returns the number
// of tokens removed.
func (s *Store) VocabularyPrune(ctx context.Context, minFrequency int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction for pruning: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	// Find all 'rare' tokens
	rows, err := tx.QueryContext(ctx,
		`SELECT next_token_id FROM markov_chains GROUP BY next_token_id HAVING SUM(frequency) < ?`,
		minFrequency)
	if err != nil {
		return 0, fmt.Errorf("failed to query for rare tokens: %w", err)
	}

	var rareTokenIDs []int
	var rareTokenIDSet = make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan rare token id: %w", err)
		}
		rareTokenIDs = append(rareTokenIDs, id)
		rareTokenIDSet[id] = struct{}{}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error after iterating rare token rows: %w", err)
	}

	if len(rareTokenIDs) == 0 {
		s.logger.InfoContext(ctx, "No vocabulary to prune",
			slog.Int("min_frequency", minFrequency),
		)
		return 0, tx.Commit() // Nothing to do
	}

	// Prefixes are checked in Go rather than with LIKE queries on prefix_text.
	pRows, err := tx.QueryContext(ctx, `SELECT prefix_id, prefix_text FROM markov_prefixes`)
	if err != nil {
		return 0, fmt.Errorf("failed to query all prefixes for checking: %w", err)
	}

	var affectedPrefixIDs []int
	for pRows.Next() {
		var prefixID int
		var prefixText string
		if err := pRows.Scan(&prefixID, &prefixText); err != nil {
			_ = pRows.Close()
			return 0, fmt.Errorf("failed to scan prefix row: %w", err)
		}

		for _, idStr := range strings.Split(prefixText, " ") {
			id, _ := strconv.Atoi(idStr)
			if _, isRare := rareTokenIDSet[id]; isRare {
				affectedPrefixIDs = append(affectedPrefixIDs, prefixID)
				break // Found a rare token, no need to check others in this prefix
			}
		}
	}
	_ = pRows.Close()
	if err := pRows.Err(); err != nil {
		return 0, fmt.Errorf("error after iterating prefix rows: %w", err)
	}

	// Deletions run chains -> starts -> prefixes -> vocabulary.
	if err := batchDelete(ctx, tx, "markov_chains", "next_token_id", intSliceToInterface(rareTokenIDs)); err != nil {
		return 0, fmt.Errorf("failed to prune chains by next_token_id: %w", err)
	}
	if err := batchDelete(ctx, tx, "markov_chains", "prefix_id", intSliceToInterface(affectedPrefixIDs)); err != nil {
		return 0, fmt.Errorf("failed to prune chains by prefix_id: %w", err)
	}
	if err := batchDelete(ctx, tx, "markov_starts", "prefix_id", intSliceToInterface(affectedPrefixIDs)); err != nil {
		return 0, fmt.Errorf("failed to prune starts by prefix_id: %w", err)
	}
	// Starts whose prefix lost its last chain can no longer begin a walk.
	if _, err := tx.ExecContext(ctx, `DELETE FROM markov_starts WHERE NOT EXISTS (SELECT 1 FROM markov_chains c WHERE c.model_id = markov_starts.model_id AND c.prefix_id = markov_starts.prefix_id)`); err != nil {
		return 0, fmt.Errorf("failed to prune orphaned starts: %w", err)
	}
	if err := batchDelete(ctx, tx, "markov_prefixes", "prefix_id", intSliceToInterface(affectedPrefixIDs)); err != nil {
		return 0, fmt.Errorf("failed to prune affected prefixes: %w", err)
	}
	if err := batchDelete(ctx, tx, "markov_vocabulary", "token_id", intSliceToInterface(rareTokenIDs)); err != nil {
		return 0, fmt.Errorf("failed to prune rare tokens from vocabulary: %w", err)
	}

	numPruned := len(rareTokenIDs)
	s.logger.InfoContext(ctx, "Vocabulary pruned successfully",
		slog.Int("min_frequency", minFrequency),
		slog.Int("tokens_removed", numPruned),
		slog.Int("prefixes_affected", len(affectedPrefixIDs)),
	)

	return numPruned, tx.Commit()
}

// batchDelete deletes rows whose column is in ids, splitting large lists into
// batches to stay under SQLite's variable limit.
func batchDelete(ctx context.Context, tx *sql.Tx, table, column string, ids []interface{}) error {
	for i := 0; i < len(ids); i += batchSize {
		batch := ids[i:min(i+batchSize, len(ids))]
		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (?%s)", table, column, strings.Repeat(",?", len(batch)-1))
		if _, err := tx.ExecContext(ctx, query, batch...); err != nil {
			return err
		}
	}
	return nil
}

// intSliceToInterface is a helper to convert []int to []interface{} for SQL args.
func intSliceToInterface(s []int) []interface{} {
	if s == nil {
		return nil
	}
	i := make([]interface{}, len(s))
	for j, v := range s {
		i[j] = v
	}
	return i
}
