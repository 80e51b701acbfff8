package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/CTAG07/Markiavelli/pkg/markov"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Merge an exported JSON model into the store",
	Long: `Import adds the frequencies of an exported model to the stored model of the
same name, creating it when needed. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		in := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func(f *os.File) {
				_ = f.Close()
			}(f)
			in = f
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return runImport(cmd.Context(), a, in, cmd.OutOrStdout(), name)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("name", "", "Import under this name instead of the one in the file")
}

func runImport(ctx context.Context, a *app, in io.Reader, out io.Writer, name string) error {
	exported, err := markov.DecodeExported(in)
	if err != nil {
		return err
	}
	if name != "" {
		exported.Name = name
	}
	if exported.Name == "" {
		return fmt.Errorf("the model has no name; use --name")
	}
	info, err := a.registry.Merge(ctx, exported)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "imported '%s' (order %d): %d chains, %d start states\n",
		info.Name, info.Order, len(exported.Chains), len(exported.Starts))
	return err
}
