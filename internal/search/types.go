// Package search provides the hybrid query engine: parallel fan-out across
// the lexical, vector, and graph indexes, weighted score fusion, and a
// source-store fallback scan when every index comes back empty.
package search

import (
	"time"

	"github.com/Aman-CERP/corpus/internal/store"
)

// Mode selects which indexes participate in a query.
type Mode string

const (
	// ModeLexical queries the keyword index only.
	ModeLexical Mode = "lexical"
	// ModeVector queries the similarity index only.
	ModeVector Mode = "vector"
	// ModeHybrid fans out to all three indexes and fuses. Default.
	ModeHybrid Mode = "hybrid"
)

// Weights are the fusion coefficients. They must sum to 1.0.
type Weights struct {
	Lexical float64 `yaml:"lexical"`
	Vector  float64 `yaml:"vector"`
	Graph   float64 `yaml:"graph"`
}

// DefaultWeights returns the standard 0.3/0.4/0.3 split.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.3, Vector: 0.4, Graph: 0.3}
}

// Sum returns the total of all coefficients.
func (w Weights) Sum() float64 {
	return w.Lexical + w.Vector + w.Graph
}

// SearchOptions control a single query.
type SearchOptions struct {
	// Mode defaults to ModeHybrid.
	Mode Mode

	// Limit caps the result count. Defaults to EngineConfig.DefaultLimit.
	Limit int

	// Weights override the configured fusion weights when non-nil.
	Weights *Weights

	// Category filters results to one category when set.
	Category string
}

// Result is a single fully-enriched search hit. Title, content, category,
// and tags come from the authoritative store, never from an index.
type Result struct {
	// ID is the document or chunk id that matched.
	ID string

	// ParentID is set when the hit is a chunk; it names the owning document.
	ParentID string

	// Score is the fused score. Not normalized across queries.
	Score float64

	// Per-index components, preserved for display and debugging.
	LexicalScore float64
	VectorScore  float64
	GraphScore   float64

	// Fallback marks a hit produced by the substring scan rather than the
	// indexes.
	Fallback bool

	Title     string
	Content   string
	Category  string
	Tags      []string
	Origin    store.Origin
	UpdatedAt time.Time
}

// AskResponse is a composed answer over retrieved passages.
type AskResponse struct {
	Answer     string
	Confidence float64
	Sources    []*Result
}

// EngineConfig configures the query engine.
type EngineConfig struct {
	// DefaultLimit is applied when SearchOptions.Limit is unset.
	DefaultLimit int

	// MaxLimit caps any requested limit.
	MaxLimit int

	// Weights are the default fusion coefficients.
	Weights Weights

	// IndexTimeout bounds each index's share of a query. An index that
	// misses its deadline contributes zero scores.
	IndexTimeout time.Duration

	// AskPassages is how many top results feed answer composition.
	AskPassages int
}

// DefaultEngineConfig returns production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit: 10,
		MaxLimit:     100,
		Weights:      DefaultWeights(),
		IndexTimeout: 2 * time.Second,
		AskPassages:  5,
	}
}
