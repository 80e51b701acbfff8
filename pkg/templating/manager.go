package templating

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
)

const (
	templateSuffix = ".tmpl.md"
	partialSuffix  = ".part.md"
)

// TemplateManager is the central controller for the templating engine.
// It manages the template set, configuration, function map and the model
// Generator. It is responsible for loading, parsing, and executing templates.
// All methods are concurrent-safe.
type TemplateManager struct {
	logger         *slog.Logger
	config         *TemplateConfig
	generator      Generator
	templates      *template.Template
	cleanTemplates *template.Template
	templateNames  []string
	funcMap        template.FuncMap
	templateDir    string
	mu             sync.RWMutex
}

// NewTemplateManager creates, initializes, and returns a new TemplateManager.
// generator may be nil, in which case the markov functions fail when called.
// A nil config uses DefaultConfig. It performs an initial Refresh to load
// every template in templateDir.
func NewTemplateManager(logger *slog.Logger, generator Generator, config *TemplateConfig, templateDir string) (*TemplateManager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config == nil {
		c := DefaultConfig()
		config = &c
	}

	tm := &TemplateManager{
		logger:      logger,
		generator:   generator,
		templateDir: templateDir,
		config:      config,
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Info("Template manager initialized")
	return tm, nil
}

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Content Generation (from funcs_content.go)
		"markovSentence":   tm.markovSentence,
		"markovParagraphs": tm.markovParagraphs,

		// Logic & Control (from funcs_logic.go)
		"repeat":       tm.repeat,
		"list":         list,
		"randomChoice": randomChoice,
		"randomInt":    randomInt,

		// Simple (from funcs_simple.go)
		"add":   add,
		"sub":   sub,
		"upper": upper,
		"lower": lower,
	}
}

// SetConfig applies a new configuration to the TemplateManager.
func (tm *TemplateManager) SetConfig(config *TemplateConfig) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.config = config
}

// SetGenerator replaces the Generator used by the markov functions.
func (tm *TemplateManager) SetGenerator(generator Generator) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.generator = generator
}

// Refresh reloads all templates and partials from the filesystem. It allows
// templates to be updated without restarting the application. On error the
// previously loaded set is kept.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.logger.Info("Loading template files...")
	parsed := template.New("").Funcs(tm.funcMap)
	var names []string

	for _, suffix := range []string{templateSuffix, partialSuffix} {
		files, err := filepath.Glob(filepath.Join(tm.templateDir, "*"+suffix))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			continue
		}
		if parsed, err = parsed.ParseFiles(files...); err != nil {
			tm.logger.Error("failed to parse template files", "error", err)
			return err
		}
		if suffix == templateSuffix {
			for _, f := range files {
				names = append(names, filepath.Base(f))
			}
		}
	}

	if len(names) == 0 {
		tm.logger.Warn("No template files found", "dir", tm.templateDir, "pattern", "*"+templateSuffix)
	}
	sort.Strings(names)

	// Create a clean clone for string executions after all parsing is complete.
	clean, err := parsed.Clone()
	if err != nil {
		tm.logger.Error("failed to create a clean clone of templates", "error", err)
		return err
	}

	tm.templates = parsed
	tm.cleanTemplates = clean
	tm.templateNames = names
	tm.logger.Info("Loaded template files", "count", len(names))
	return nil
}

// Execute renders a specific template by name, writing the output to the provided io.Writer.
// The data argument is passed to the template.
func (tm *TemplateManager) Execute(w io.Writer, name string, data interface{}) error {
	if name == "" {
		return nil
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if tm.templates.Lookup(name) == nil {
		return fmt.Errorf("template '%s' not found", name)
	}
	return tm.templates.ExecuteTemplate(w, name, data)
}

// GetRandomTemplate returns the name of a randomly selected template from the
// set of loaded full templates, or "" when none are loaded.
func (tm *TemplateManager) GetRandomTemplate() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if len(tm.templateNames) == 0 {
		return ""
	}
	return tm.templateNames[rand.IntN(len(tm.templateNames))]
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return *tm.config
}

// GetTemplateNames returns the loaded template and partial names, sorted.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	var names []string
	for _, t := range tm.templates.Templates() {
		// The root template has no name and is not a file.
		if strings.HasSuffix(t.Name(), ".md") {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

// GetTemplateDir returns the template dir that the TemplateManager uses.
func (tm *TemplateManager) GetTemplateDir() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templateDir
}

// ExecuteTemplateString parses and executes a raw template string using the manager's function map.
// Partials are available to it. This is ideal for testing or previewing templates without saving them to disk.
func (tm *TemplateManager) ExecuteTemplateString(w io.Writer, content string, data interface{}) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	// Clone the clean, unexecuted template set to avoid race conditions and execution state issues.
	tempSet, err := tm.cleanTemplates.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone clean templates for string execution: %w", err)
	}

	t, err := tempSet.New("inline").Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}

	return t.Execute(w, data)
}
