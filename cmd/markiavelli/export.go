package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a model as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		path, _ := cmd.Flags().GetString("out")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return runExport(cmd.Context(), a, cmd.OutOrStdout(), model, path)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("model", "m", "", "Name of the model to export")
	exportCmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
	_ = exportCmd.MarkFlagRequired("model")
}

// runExport writes the model to path, replacing it atomically, or to out when
// path is empty.
func runExport(ctx context.Context, a *app, out io.Writer, model, path string) error {
	if path == "" {
		return a.registry.Export(ctx, model, out)
	}
	var buf bytes.Buffer
	if err := a.registry.Export(ctx, model, &buf); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	a.logger.Info("Model exported", "model_name", model, "path", path)
	return nil
}
