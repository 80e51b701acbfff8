package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Markiavelli/pkg/markov"
	"github.com/CTAG07/Markiavelli/pkg/templating"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate text from a model, or compose a post from a template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		model, _ := flags.GetString("model")
		tmpl, _ := flags.GetString("template")
		count, _ := flags.GetInt("count")
		if model == "" && tmpl == "" {
			return fmt.Errorf("one of --model or --template is required")
		}

		var opts []markov.GenerateOption
		if flags.Changed("max-length") {
			n, _ := flags.GetInt("max-length")
			opts = append(opts, markov.WithMaxLength(n))
		}
		if flags.Changed("min-length") {
			n, _ := flags.GetInt("min-length")
			opts = append(opts, markov.WithMinLength(n))
		}
		if flags.Changed("no-early-stop") {
			noEarly, _ := flags.GetBool("no-early-stop")
			opts = append(opts, markov.WithEarlyTermination(!noEarly))
		}
		if flags.Changed("temperature") {
			t, _ := flags.GetFloat64("temperature")
			opts = append(opts, markov.WithTemperature(t))
		}
		if flags.Changed("top-k") {
			k, _ := flags.GetInt("top-k")
			opts = append(opts, markov.WithTopK(k))
		}
		if start, _ := flags.GetString("start"); start != "" {
			opts = append(opts, markov.WithStartText(start))
		}
		if flags.Changed("seed") {
			seed, _ := flags.GetUint64("seed")
			opts = append(opts, markov.WithRand(rand.New(rand.NewPCG(seed, seed))))
		}
		if keywords, _ := flags.GetStringArray("keyword"); len(keywords) > 0 {
			weight, _ := flags.GetInt("keyword-weight")
			opts = append(opts, markov.WithKeywords(weight, keywords...))
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if files, _ := flags.GetStringArray("load"); len(files) > 0 {
			return runGenerateFiles(a, cmd.OutOrStdout(), files, model, tmpl, count, opts...)
		}
		if tmpl != "" {
			return runCompose(a, cmd.OutOrStdout(), tmpl, count)
		}
		return runGenerate(cmd.Context(), a, cmd.OutOrStdout(), model, count, opts...)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("model", "m", "", "Name of the model to generate from")
	generateCmd.Flags().StringP("template", "t", "", "Compose a post from this template instead")
	generateCmd.Flags().IntP("count", "n", 1, "Number of texts to generate")
	generateCmd.Flags().Uint64("seed", 0, "Seed for reproducible output")
	generateCmd.Flags().Int("max-length", markov.DefaultMaxLength, "Maximum number of tokens")
	generateCmd.Flags().Int("min-length", 0, "Keep going past sentence ends until this many tokens")
	generateCmd.Flags().Bool("no-early-stop", false, "Do not stop at the end of a sentence")
	generateCmd.Flags().Float64("temperature", 1.0, "Sampling temperature; 0 always picks the most frequent token")
	generateCmd.Flags().Int("top-k", 0, "Sample only from the k most frequent successors")
	generateCmd.Flags().String("start", "", "Text to begin generation with")
	generateCmd.Flags().StringArray("keyword", nil, "Favor this token (repeatable)")
	generateCmd.Flags().Int("keyword-weight", 4, "Weight multiplier for keywords")
	generateCmd.Flags().StringArray("load", nil, "Use this exported JSON model instead of the store (repeatable)")
}

func runGenerate(ctx context.Context, a *app, out io.Writer, model string, count int, opts ...markov.GenerateOption) error {
	for i := 0; i < count; i++ {
		text, err := a.registry.Generate(ctx, model, opts...)
		if err != nil {
			return err
		}
		if _, err = fmt.Fprintln(out, text); err != nil {
			return err
		}
	}
	return nil
}

// runGenerateFiles generates from exported model files. Each model is known by
// the name recorded in its file, or by the file name when there is none.
func runGenerateFiles(a *app, out io.Writer, files []string, model, tmpl string, count int, opts ...markov.GenerateOption) error {
	cfg := a.cm.Get()
	models := make(templating.ModelMap, len(files))
	for _, path := range files {
		m, name, err := loadModelFile(path, cfg.ModelOptions(a.logger)...)
		if err != nil {
			return fmt.Errorf("failed to load '%s': %w", path, err)
		}
		models[name] = m
	}
	if tmpl != "" {
		return compose(a, models, out, tmpl, count)
	}

	opts = append(cfg.GenerateOptions(), opts...)
	for i := 0; i < count; i++ {
		text, err := models.GenerateText(model, opts...)
		if err != nil {
			return err
		}
		if _, err = fmt.Fprintln(out, text); err != nil {
			return err
		}
	}
	return nil
}

func loadModelFile(path string, opts ...markov.ModelOption) (*markov.Model, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	m, name, err := markov.Load(f, opts...)
	if err != nil {
		return nil, "", err
	}
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return m, name, nil
}

func runCompose(a *app, out io.Writer, name string, count int) error {
	return compose(a, a.registry, out, name, count)
}

func compose(a *app, gen templating.Generator, out io.Writer, name string, count int) error {
	cfg := a.cm.Get()
	tm, err := templating.NewTemplateManager(a.logger, gen, cfg.Templates, cfg.Server.TemplateDir)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	for i := 0; i < count; i++ {
		if i > 0 {
			if _, err = io.WriteString(out, "\n\n"); err != nil {
				return err
			}
		}
		if err = tm.Execute(out, name, nil); err != nil {
			return err
		}
	}
	_, err = io.WriteString(out, "\n")
	return err
}
