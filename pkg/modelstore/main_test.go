package modelstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/CTAG07/Markiavelli/pkg/markov"
	_ "modernc.org/sqlite"
)

// setupTestStore creates a new SQLite database file and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestStore(t testing.TB) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTestStoreWithModel is a convenience helper that also saves a trained
// order-2 model named "test_model".
func setupTestStoreWithModel(t *testing.T) (context.Context, *Store, ModelInfo, *markov.Model) {
	t.Helper()
	_, s := setupTestStore(t)
	ctx := context.Background()

	m, err := markov.NewModel(2)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Train("one fish two fish. red fish blue fish."); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}
	info, err := s.Save(ctx, "test_model", m)
	if err != nil {
		t.Fatalf("setup: Save() failed: %v", err)
	}
	return ctx, s, info, m
}
