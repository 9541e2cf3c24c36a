// Package embed produces fixed-length vectors for text. The embedding
// function is treated as a black box by the rest of the system: same text,
// same vector.
package embed

import (
	"context"
	"math"
)

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName identifies the embedding model, for cache keys and
	// snapshot compatibility checks.
	ModelName() string

	Close() error
}

// normalizeVector returns vec scaled to unit length. A zero vector is
// returned unchanged.
func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
