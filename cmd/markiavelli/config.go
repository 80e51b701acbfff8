package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CTAG07/Markiavelli/internal/logging"
	"github.com/CTAG07/Markiavelli/pkg/markov"
	"github.com/CTAG07/Markiavelli/pkg/templating"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the settings for the HTTP server and the model database.
type ServerConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	LogLevel     string `json:"log_level" yaml:"log_level"`
	DatabasePath string `json:"database_path" yaml:"database_path"`
	TemplateDir  string `json:"template_dir" yaml:"template_dir"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// ModelConfig holds the settings used when a model is created or loaded.
type ModelConfig struct {
	Order          int    `json:"order" yaml:"order"`
	Tokenizer      string `json:"tokenizer" yaml:"tokenizer"` // "word" or "char"
	SentenceStarts bool   `json:"sentence_starts" yaml:"sentence_starts"`
}

// GenerateConfig holds the default stop policy and sampling settings.
type GenerateConfig struct {
	MaxLength        int     `json:"max_length" yaml:"max_length"`
	MinLength        int     `json:"min_length" yaml:"min_length"`
	EarlyTermination bool    `json:"early_termination" yaml:"early_termination"`
	Temperature      float64 `json:"temperature" yaml:"temperature"`
	TopK             int     `json:"top_k" yaml:"top_k"`
}

// SourcesConfig holds the settings for the corpus sources used by train.
type SourcesConfig struct {
	CommentsQuery string   `json:"comments_query" yaml:"comments_query"`
	Ignore        []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	RedisAddr     string   `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string   `json:"redis_password" yaml:"redis_password"`
	RedisDB       int      `json:"redis_db" yaml:"redis_db"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig              `json:"server_config" yaml:"server_config"`
	Model     *ModelConfig               `json:"model_config" yaml:"model_config"`
	Generate  *GenerateConfig            `json:"generate_config" yaml:"generate_config"`
	Sources   *SourcesConfig             `json:"sources_config" yaml:"sources_config"`
	Templates *templating.TemplateConfig `json:"template_config" yaml:"template_config"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	tmpl := templating.DefaultConfig()
	return &Config{
		Server: &ServerConfig{
			Addr:         ":7279",
			LogLevel:     "info",
			DatabasePath: "./data/markiavelli.db?_journal_mode=WAL&_busy_timeout=5000",
			TemplateDir:  "./data/templates/",
			MaxBodyBytes: 32 << 20,
		},
		Model: &ModelConfig{
			Order:          2,
			Tokenizer:      "word",
			SentenceStarts: true,
		},
		Generate: &GenerateConfig{
			MaxLength:        markov.DefaultMaxLength,
			EarlyTermination: true,
			Temperature:      1.0,
		},
		Sources: &SourcesConfig{
			CommentsQuery: "SELECT body FROM comments",
			RedisAddr:     "localhost:6379",
		},
		Templates: &tmpl,
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Server == nil || c.Model == nil || c.Generate == nil || c.Sources == nil || c.Templates == nil {
		return fmt.Errorf("config is missing a section")
	}
	if c.Model.Order < 1 {
		return &markov.InvalidOrderError{Order: c.Model.Order}
	}
	if _, err := newTokenizer(c.Model.Tokenizer); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Server.LogLevel); err != nil {
		return err
	}
	if c.Generate.MaxLength < 0 || c.Generate.MinLength < 0 {
		return fmt.Errorf("generate lengths must not be negative")
	}
	return nil
}

// ModelOptions returns the options every model is created or loaded with.
func (c *Config) ModelOptions(logger *slog.Logger) []markov.ModelOption {
	tokenizer, _ := newTokenizer(c.Model.Tokenizer)
	return []markov.ModelOption{
		markov.WithTokenizer(tokenizer),
		markov.WithSentenceStarts(c.Model.SentenceStarts),
		markov.WithLogger(logger),
	}
}

// GenerateOptions returns the configured defaults as generation options.
// Options given after them override them.
func (c *Config) GenerateOptions() []markov.GenerateOption {
	return []markov.GenerateOption{
		markov.WithMaxLength(c.Generate.MaxLength),
		markov.WithMinLength(c.Generate.MinLength),
		markov.WithEarlyTermination(c.Generate.EarlyTermination),
		markov.WithTemperature(c.Generate.Temperature),
		markov.WithTopK(c.Generate.TopK),
	}
}

func newTokenizer(name string) (markov.Tokenizer, error) {
	switch strings.ToLower(name) {
	case "", "word":
		return markov.NewDefaultTokenizer(), nil
	case "char":
		return markov.NewCharTokenizer(), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func marshalConfig(path string, config *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(config)
	}
	return json.MarshalIndent(config, "", "  ")
}

// LoadConfig reads the configuration from a JSON or YAML file at the given
// path; files ending in .yaml or .yml are parsed as YAML. If the file doesn't
// exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = marshalConfig(path, config)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The defaults are still usable.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(file, config)
	} else {
		err = json.Unmarshal(file, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return config, nil
}

// ConfigManager handles thread-safe access to configuration.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
	tm         *templating.TemplateManager
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &ConfigManager{
		config:     cfg,
		configPath: path,
		logger:     logging.NewNop(),
	}, nil
}

// SetTemplateManager registers the template manager to receive config updates.
func (cm *ConfigManager) SetTemplateManager(tm *templating.TemplateManager) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.tm = tm
	if tm != nil {
		tm.SetConfig(cm.config.Templates)
	}
}

// SetLogger sets the logger.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// Path returns the file the configuration was loaded from.
func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// Update validates the configuration, saves it to disk and applies it.
func (cm *ConfigManager) Update(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.tm != nil {
		oldTmplConfig := cm.config.Templates
		cm.tm.SetConfig(newConfig.Templates)
		if err := cm.tm.Refresh(); err != nil {
			cm.tm.SetConfig(oldTmplConfig)
			return fmt.Errorf("failed to apply template config: %w", err)
		}
	}

	data, err := marshalConfig(cm.configPath, &newConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cm.config = &newConfig
	cm.logger.Info("Configuration updated", slog.String("path", cm.configPath))
	return nil
}
