package main

import (
	"context"
	"fmt"
	"io"

	"github.com/CTAG07/Markiavelli/pkg/corpus"
	"github.com/spf13/cobra"
)

type trainOptions struct {
	model         string
	order         int
	files         []string
	paragraphs    bool
	commentsDB    string
	commentsQuery string
	redisKey      string
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a model from files, a comments database, a Redis list or stdin",
	Long: `Train adds the documents of every given source to a model and saves it.
The model is created when it does not exist yet. With no sources, stdin is
read as a single document.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts trainOptions
		opts.model, _ = cmd.Flags().GetString("model")
		opts.order, _ = cmd.Flags().GetInt("order")
		opts.files, _ = cmd.Flags().GetStringArray("file")
		opts.paragraphs, _ = cmd.Flags().GetBool("paragraphs")
		opts.commentsDB, _ = cmd.Flags().GetString("comments-db")
		opts.commentsQuery, _ = cmd.Flags().GetString("comments-query")
		opts.redisKey, _ = cmd.Flags().GetString("redis-key")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return runTrain(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringP("model", "m", "", "Name of the model to train")
	trainCmd.Flags().Int("order", 0, "Order of a new model (default from config)")
	trainCmd.Flags().StringArrayP("file", "f", nil, "Text file to train on (repeatable)")
	trainCmd.Flags().Bool("paragraphs", false, "Treat each blank-line separated block of a file as its own document")
	trainCmd.Flags().String("comments-db", "", "SQLite database holding a comments table")
	trainCmd.Flags().String("comments-query", "", "Query selecting one document per row (default from config)")
	trainCmd.Flags().String("redis-key", "", "Redis list holding one document per element")
	_ = trainCmd.MarkFlagRequired("model")
}

// sources builds the corpus sources named by opts. The returned func releases them.
func (a *app) sources(opts trainOptions) ([]corpus.Source, func(), error) {
	cfg := a.cm.Get()
	var srcs []corpus.Source
	var closers []func()
	release := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, path := range opts.files {
		srcs = append(srcs, corpus.FileSource{Path: path, Paragraphs: opts.paragraphs})
	}
	if opts.commentsDB != "" {
		db, err := initDB(opts.commentsDB)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to open comments database: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		query := opts.commentsQuery
		if query == "" {
			query = cfg.Sources.CommentsQuery
		}
		srcs = append(srcs, corpus.SQLiteSource{DB: db, Query: query, Ignore: cfg.Sources.Ignore})
	}
	if opts.redisKey != "" {
		src := corpus.NewRedisSource(cfg.Sources.RedisAddr, cfg.Sources.RedisPassword, cfg.Sources.RedisDB, opts.redisKey)
		closers = append(closers, func() { _ = src.Client.Close() })
		srcs = append(srcs, src)
	}
	return srcs, release, nil
}

func runTrain(ctx context.Context, a *app, in io.Reader, out io.Writer, opts trainOptions) error {
	srcs, release, err := a.sources(opts)
	if err != nil {
		return err
	}
	defer release()

	var docs []string
	var name string
	if len(srcs) == 0 {
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		docs, name = []string{string(data)}, "stdin"
	} else {
		src := corpus.Multi(srcs...)
		if docs, err = src.Documents(ctx); err != nil {
			return err
		}
		name = src.Name()
	}

	stats, err := a.registry.Train(ctx, opts.model, opts.order, docs...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "trained '%s' on %d documents from %s: order %d, %d states, %d chains, %d start states, %d tokens\n",
		opts.model, len(docs), name, stats.Order, stats.States, stats.TotalChains, stats.StartStates, stats.Vocabulary)
	return err
}
