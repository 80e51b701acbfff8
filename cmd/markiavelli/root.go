package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "markiavelli",
	Short: "Markiavelli builds Markov chain text models and generates text from them",
	Long: `Markiavelli trains word or character level Markov chain models from text
files, comment databases and Redis lists, stores them in SQLite, and generates
text or composes Markdown posts from them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "./config.json", "Path to the JSON or YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
}
