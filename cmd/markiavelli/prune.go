package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove rare transitions from a model, or rare tokens from every model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		minFreq, _ := cmd.Flags().GetInt("min-freq")
		vocabulary, _ := cmd.Flags().GetBool("vocabulary")
		if model == "" && !vocabulary {
			return fmt.Errorf("one of --model or --vocabulary is required")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return runPrune(cmd.Context(), a, cmd.OutOrStdout(), model, minFreq, vocabulary)
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().StringP("model", "m", "", "Name of the model to prune")
	pruneCmd.Flags().Int("min-freq", 1, "Remove transitions seen this many times or fewer")
	pruneCmd.Flags().Bool("vocabulary", false, "Remove tokens used fewer than --min-freq times from every model")
}

func runPrune(ctx context.Context, a *app, out io.Writer, model string, minFreq int, vocabulary bool) error {
	if vocabulary {
		removed, err := a.registry.PruneVocabulary(ctx, minFreq)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "removed %d tokens\n", removed)
		return err
	}

	removed, err := a.registry.Prune(ctx, model, minFreq)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "removed %d transitions from '%s'\n", removed, model)
	return err
}
