// Package config loads corpus configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete corpus configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	LLM        LLMConfig        `yaml:"llm"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
}

// StorageConfig configures the data directory and the stores inside it.
type StorageConfig struct {
	// DataDir holds the SQLite databases and the vector snapshot.
	// Defaults to ~/.corpus.
	DataDir string `yaml:"data_dir"`
}

// SearchConfig configures fusion and chunking.
type SearchConfig struct {
	// LexicalWeight, VectorWeight, and GraphWeight are the fusion
	// coefficients. They must sum to 1.0.
	LexicalWeight float64 `yaml:"lexical_weight"`
	VectorWeight  float64 `yaml:"vector_weight"`
	GraphWeight   float64 `yaml:"graph_weight"`

	// DefaultLimit and MaxLimit bound result counts.
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`

	// IndexTimeout bounds each index's share of a hybrid query.
	IndexTimeout time.Duration `yaml:"index_timeout"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (deterministic, offline) for now.
	Provider  string `yaml:"provider"`
	CacheSize int    `yaml:"cache_size"`
}

// LLMConfig configures the optional extraction and answer models.
type LLMConfig struct {
	// APIKey for the OpenAI-compatible endpoint. Usually supplied via
	// CORPUS_OPENAI_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`

	// UseLLMExtraction switches entity extraction from the pattern
	// heuristic to the model.
	UseLLMExtraction bool `yaml:"use_llm_extraction"`
}

// New returns the hardcoded defaults.
func New() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			LexicalWeight: 0.3,
			VectorWeight:  0.4,
			GraphWeight:   0.3,
			DefaultLimit:  10,
			MaxLimit:      100,
			IndexTimeout:  2 * time.Second,
			ChunkSize:     2000,
			ChunkOverlap:  200,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			CacheSize: 1000,
		},
		LogLevel:  "info",
		LogFormat: "auto",
	}
}

// Load loads configuration in order of increasing precedence: defaults,
// config file (corpus.yaml in dir, when present), CORPUS_* env vars.
func Load(dir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"corpus.yaml", "corpus.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
	// No config file is fine, defaults apply.
	return nil
}

// applyEnvOverrides applies CORPUS_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CORPUS_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("CORPUS_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("CORPUS_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("CORPUS_GRAPH_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.GraphWeight = f
		}
	}
	if v := os.Getenv("CORPUS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CORPUS_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("CORPUS_OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CORPUS_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CORPUS_USE_LLM_EXTRACTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LLM.UseLLMExtraction = b
		}
	}
}

// Validate checks the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	for name, w := range map[string]float64{
		"lexical_weight": c.Search.LexicalWeight,
		"vector_weight":  c.Search.VectorWeight,
		"graph_weight":   c.Search.GraphWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, w)
		}
	}

	sum := c.Search.LexicalWeight + c.Search.VectorWeight + c.Search.GraphWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("fusion weights must sum to 1.0, got %.2f", sum)
	}

	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("max_limit must be >= default_limit, got %d", c.Search.MaxLimit)
	}
	if c.Search.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Search.ChunkSize)
	}
	if c.Search.ChunkOverlap < 0 || c.Search.ChunkOverlap >= c.Search.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.Search.ChunkOverlap)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	if c.Embeddings.Provider != "" && c.Embeddings.Provider != "static" {
		return fmt.Errorf("embeddings.provider must be 'static' or empty, got %s", c.Embeddings.Provider)
	}

	if c.LLM.UseLLMExtraction && c.LLM.APIKey == "" {
		return fmt.Errorf("use_llm_extraction requires an API key (CORPUS_OPENAI_API_KEY)")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".corpus"
	}
	return filepath.Join(home, ".corpus")
}
