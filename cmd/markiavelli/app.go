package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Markiavelli/internal/logging"
	"github.com/CTAG07/Markiavelli/pkg/modelstore"
	"github.com/spf13/cobra"
)

// app holds what every command needs: configuration, logger and model store.
type app struct {
	cm       *ConfigManager
	logger   *slog.Logger
	db       *sql.DB
	store    *modelstore.Store
	registry *modelRegistry
}

// newApp opens the app for a command, using its --config and --verbose flags.
func newApp(cmd *cobra.Command) (*app, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	return openApp(path, verbose)
}

// openApp loads the configuration at path and opens the model database.
func openApp(path string, verbose bool) (*app, error) {
	cm, err := NewConfigManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := cm.Get()

	level, _ := logging.ParseLevel(cfg.Server.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(level)
	cm.SetLogger(logger)

	db, err := initDB(cfg.Server.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = modelstore.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}
	store, err := modelstore.New(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create model store: %w", err)
	}
	store.SetLogger(logger)

	return &app{
		cm:       cm,
		logger:   logger,
		db:       db,
		store:    store,
		registry: newModelRegistry(store, &cfg, logger),
	}, nil
}

// Close releases the store and the database connection.
func (a *app) Close() {
	a.store.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}

func ensureDir(dataSource string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dataSource, "file:"), "?")
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
