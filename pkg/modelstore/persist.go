package modelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CTAG07/Markiavelli/pkg/markov"
)

// Save replaces the stored chains and start states of model with the
// contents of m. The model row is created when missing. The whole operation
// runs in one transaction.
func (s *Store) Save(ctx context.Context, name string, m *markov.Model) (ModelInfo, error) {
	snapshot := m.Snapshot()
	snapshot.Name = name
	return s.write(ctx, snapshot, true)
}

// Merge adds the frequencies of an exported model to the stored model named
// by exported.Name, creating it if it does not exist. Merging into a model of
// a different order returns an *markov.InvalidOrderError.
func (s *Store) Merge(ctx context.Context, exported *markov.ExportedModel) (ModelInfo, error) {
	return s.write(ctx, exported, false)
}

func (s *Store) write(ctx context.Context, exported *markov.ExportedModel, replace bool) (ModelInfo, error) {
	if exported == nil {
		return ModelInfo{}, &markov.InvalidInputError{Reason: "no model to write"}
	}
	if exported.Order < 1 {
		return ModelInfo{}, &markov.InvalidOrderError{Order: exported.Order}
	}
	if exported.Name == "" {
		return ModelInfo{}, &markov.InvalidInputError{Reason: "model name must not be empty"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	info := ModelInfo{Name: exported.Name, Order: exported.Order}
	err = tx.QueryRowContext(ctx, "SELECT model_id, model_order FROM markov_models WHERE model_name = ?", exported.Name).Scan(&info.Id, &info.Order)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := tx.ExecContext(ctx, "INSERT INTO markov_models (model_name, model_order) VALUES (?, ?)", exported.Name, exported.Order)
		if err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert new model '%s': %w", exported.Name, err)
		}
		newID, _ := res.LastInsertId()
		info.Id = int(newID)
	} else if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to query for model '%s': %w", exported.Name, err)
	}

	if replace {
		if _, err = tx.ExecContext(ctx, "UPDATE markov_models SET model_order = ? WHERE model_id = ?", exported.Order, info.Id); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to update order of model %d: %w", info.Id, err)
		}
		info.Order = exported.Order
		if _, err = tx.ExecContext(ctx, "DELETE FROM markov_chains WHERE model_id = ?", info.Id); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to clear chains for model %d: %w", info.Id, err)
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM markov_starts WHERE model_id = ?", info.Id); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to clear starts for model %d: %w", info.Id, err)
		}
	} else if info.Order != exported.Order {
		return ModelInfo{}, &markov.InvalidOrderError{Order: exported.Order, Expected: info.Order}
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtGetOrInsertPrefix := tx.StmtContext(ctx, s.stmtGetOrInsertPrefix)

	vocabIDMap := make([]int, len(exported.Vocabulary)) // export index -> token_id
	for i, text := range exported.Vocabulary {
		if !utf8.ValidString(text) || strings.Contains(text, "\x00") {
			return ModelInfo{}, &markov.InvalidInputError{Reason: fmt.Sprintf("token %q is not valid text", text)}
		}
		if err := stmtInsertVocab.QueryRowContext(ctx, text).Scan(&vocabIDMap[i]); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to get/insert vocab '%s': %w", text, err)
		}
	}

	prefixCache := make(map[string]int)
	prefixID := func(ids []int) (int, error) {
		if len(ids) != exported.Order {
			return 0, &markov.InvalidInputError{Reason: fmt.Sprintf("prefix has %d tokens, model order is %d", len(ids), exported.Order)}
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			if id < 0 || id >= len(vocabIDMap) {
				return 0, &markov.InvalidInputError{Reason: fmt.Sprintf("token id %d not found in vocabulary", id)}
			}
			parts[i] = strconv.Itoa(vocabIDMap[id])
		}
		text := strings.Join(parts, " ")
		if id, ok := prefixCache[text]; ok {
			return id, nil
		}
		var id int
		if err := stmtGetOrInsertPrefix.QueryRowContext(ctx, text).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to get/insert prefix '%s': %w", text, err)
		}
		prefixCache[text] = id
		return id, nil
	}

	// Prepare a special query so that if we're updating instead of inserting, we don't overwrite the frequency value
	stmtInsertChain, err := tx.PrepareContext(ctx, `
		INSERT INTO markov_chains (model_id, prefix_id, next_token_id, frequency) VALUES (?, ?, ?, ?)
		ON CONFLICT(model_id, prefix_id, next_token_id) DO UPDATE SET frequency = frequency + excluded.frequency;
	`)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to prepare chain insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertChain)

	stmtInsertStart, err := tx.PrepareContext(ctx, `
		INSERT INTO markov_starts (model_id, prefix_id, frequency) VALUES (?, ?, ?)
		ON CONFLICT(model_id, prefix_id) DO UPDATE SET frequency = frequency + excluded.frequency;
	`)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to prepare start insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertStart)

	for _, chain := range exported.Chains {
		pid, err := prefixID(chain.Prefix)
		if err != nil {
			return ModelInfo{}, err
		}
		if chain.NextTokenID < 0 || chain.NextTokenID >= len(vocabIDMap) {
			return ModelInfo{}, &markov.InvalidInputError{Reason: fmt.Sprintf("token id %d not found in vocabulary", chain.NextTokenID)}
		}
		if chain.Frequency < 1 {
			return ModelInfo{}, &markov.InvalidInputError{Reason: fmt.Sprintf("chain frequency %d must be positive", chain.Frequency)}
		}
		next := vocabIDMap[chain.NextTokenID]
		if _, err = stmtInsertChain.ExecContext(ctx, info.Id, pid, next, chain.Frequency); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert chain link (%d -> %d): %w", pid, next, err)
		}
	}

	for _, start := range exported.Starts {
		pid, err := prefixID(start.Prefix)
		if err != nil {
			return ModelInfo{}, err
		}
		if start.Frequency < 1 {
			return ModelInfo{}, &markov.InvalidInputError{Reason: fmt.Sprintf("start frequency %d must be positive", start.Frequency)}
		}
		if _, err = stmtInsertStart.ExecContext(ctx, info.Id, pid, start.Frequency); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert start %d: %w", pid, err)
		}
	}

	msg := "Model merged successfully"
	if replace {
		msg = "Model saved successfully"
	}
	s.logger.InfoContext(ctx, msg,
		slog.String("model_name", info.Name),
		slog.Int("model_id", info.Id),
		slog.Int("vocab_items", len(exported.Vocabulary)),
		slog.Int("prefixes", len(prefixCache)),
		slog.Int("chains", len(exported.Chains)),
		slog.Int("starts", len(exported.Starts)),
	)

	return info, tx.Commit()
}

// Export reads a stored model into its serializable form.
func (s *Store) Export(ctx context.Context, model ModelInfo) (*markov.ExportedModel, error) {
	exported := &markov.ExportedModel{Name: model.Name, Order: model.Order}

	type row struct {
		prefix []int
		next   int
		freq   int
	}
	var chains, starts []row
	tokenIDs := make(map[int]struct{})

	load := func(query string, withNext bool) ([]row, error) {
		rows, err := s.db.QueryContext(ctx, query, model.Id)
		if err != nil {
			return nil, err
		}
		defer func(rows *sql.Rows) {
			_ = rows.Close()
		}(rows)

		var out []row
		for rows.Next() {
			var r row
			var prefixText string
			if withNext {
				err = rows.Scan(&prefixText, &r.next, &r.freq)
			} else {
				err = rows.Scan(&prefixText, &r.freq)
			}
			if err != nil {
				return nil, err
			}
			if r.prefix, err = parsePrefix(prefixText); err != nil {
				return nil, err
			}
			for _, id := range r.prefix {
				tokenIDs[id] = struct{}{}
			}
			if withNext {
				tokenIDs[r.next] = struct{}{}
			}
			out = append(out, r)
		}
		return out, rows.Err()
	}

	chains, err := load(`SELECT p.prefix_text, c.next_token_id, c.frequency FROM markov_chains c
		JOIN markov_prefixes p ON p.prefix_id = c.prefix_id WHERE c.model_id = ?`, true)
	if err != nil {
		return nil, fmt.Errorf("could not query chains for export: %w", err)
	}
	starts, err = load(`SELECT p.prefix_text, st.frequency FROM markov_starts st
		JOIN markov_prefixes p ON p.prefix_id = st.prefix_id WHERE st.model_id = ?`, false)
	if err != nil {
		return nil, fmt.Errorf("could not query starts for export: %w", err)
	}

	texts, err := s.lookupTokens(ctx, tokenIDs)
	if err != nil {
		return nil, err
	}
	index := make(map[int]int, len(texts)) // token_id -> export index
	vocabIndex := func(id int) (int, error) {
		if i, ok := index[id]; ok {
			return i, nil
		}
		text, ok := texts[id]
		if !ok {
			return 0, fmt.Errorf("consistency error: token id %d not found in vocabulary", id)
		}
		i := len(exported.Vocabulary)
		index[id] = i
		exported.Vocabulary = append(exported.Vocabulary, text)
		return i, nil
	}
	remap := func(ids []int) ([]int, error) {
		out := make([]int, len(ids))
		for i, id := range ids {
			var err error
			if out[i], err = vocabIndex(id); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for _, c := range chains {
		prefix, err := remap(c.prefix)
		if err != nil {
			return nil, err
		}
		next, err := vocabIndex(c.next)
		if err != nil {
			return nil, err
		}
		exported.Chains = append(exported.Chains, markov.ExportedChain{Prefix: prefix, NextTokenID: next, Frequency: c.freq})
	}
	for _, st := range starts {
		prefix, err := remap(st.prefix)
		if err != nil {
			return nil, err
		}
		exported.Starts = append(exported.Starts, markov.ExportedStart{Prefix: prefix, Frequency: st.freq})
	}
	return exported, nil
}

// Load rebuilds an in-memory model from the stored chains of model.
func (s *Store) Load(ctx context.Context, model ModelInfo, opts ...markov.ModelOption) (*markov.Model, error) {
	exported, err := s.Export(ctx, model)
	if err != nil {
		return nil, err
	}
	m, err := markov.NewModel(model.Order, opts...)
	if err != nil {
		return nil, err
	}
	if err = m.Merge(exported); err != nil {
		return nil, fmt.Errorf("could not load model '%s': %w", model.Name, err)
	}

	s.logger.DebugContext(ctx, "Model loaded",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("chains", len(exported.Chains)),
	)
	return m, nil
}

// lookupTokens resolves token ids to their text in batches.
func (s *Store) lookupTokens(ctx context.Context, ids map[int]struct{}) (map[int]string, error) {
	texts := make(map[int]string, len(ids))
	all := make([]interface{}, 0, len(ids))
	for id := range ids {
		all = append(all, id)
	}
	for i := 0; i < len(all); i += batchSize {
		batch := all[i:min(i+batchSize, len(all))]
		query := fmt.Sprintf(`SELECT token_id, token_text FROM markov_vocabulary WHERE token_id IN (?%s)`, strings.Repeat(",?", len(batch)-1))
		rows, err := s.db.QueryContext(ctx, query, batch...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int
			var text string
			if err := rows.Scan(&id, &text); err != nil {
				_ = rows.Close()
				return nil, err
			}
			texts[id] = text
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return texts, nil
}

func parsePrefix(text string) ([]int, error) {
	fields := strings.Fields(text)
	ids := make([]int, len(fields))
	for i, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("malformed prefix '%s': %w", text, err)
		}
		ids[i] = id
	}
	return ids, nil
}
