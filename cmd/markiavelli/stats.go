package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the stored models and their sizes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return runStats(cmd.Context(), a, cmd.OutOrStdout(), asJSON)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Bool("json", false, "Print as JSON")
}

func runStats(ctx context.Context, a *app, out io.Writer, asJSON bool) error {
	stats, err := a.store.GetStats(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MODEL\tORDER\tCHAINS\tFREQUENCY\tSTARTS")
	for _, model := range stats.Models {
		s := stats.Stats[model.Id]
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", model.Name, model.Order, s.TotalChains, s.TotalFrequency, s.StartStates)
	}
	if err = tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "\n%d tokens, %d prefixes\n", stats.VocabSize, stats.PrefixSize)
	return err
}
