package search

import (
	"sort"

	"github.com/Aman-CERP/corpus/internal/store"
)

// FusedResult is a single result after weighted score fusion.
type FusedResult struct {
	ID           string
	Score        float64 // weighted sum of per-index scores
	LexicalScore float64
	VectorScore  float64
	GraphScore   float64
}

// Fusion combines per-index result lists with a weighted sum:
//
//	score(d) = w_lex * lexical(d) + w_vec * vector(d) + w_graph * graph(d)
//
// An index that did not return a document contributes zero. A document with
// any positive lexical score is kept even when the weighted sum rounds to
// zero, so exact keyword matches are never lost to fusion arithmetic.
type Fusion struct {
	weights Weights
}

// NewFusion creates a fusion stage. Weights that do not sum to a positive
// value fall back to the defaults.
func NewFusion(weights Weights) *Fusion {
	if weights.Sum() <= 0 {
		weights = DefaultWeights()
	}
	return &Fusion{weights: weights}
}

// Fuse merges the three result lists. Results are sorted by fused score
// descending, ties broken by id ascending.
func (f *Fusion) Fuse(
	lexical []*store.LexicalResult,
	vector []*store.VectorResult,
	graph []*store.GraphResult,
	weights *Weights,
) []*FusedResult {
	w := f.weights
	if weights != nil && weights.Sum() > 0 {
		w = *weights
	}

	scores := make(map[string]*FusedResult, len(lexical)+len(vector)+len(graph))

	for _, r := range lexical {
		fr := getOrCreate(scores, r.ID)
		fr.LexicalScore = r.Score
	}
	for _, r := range vector {
		fr := getOrCreate(scores, r.ID)
		fr.VectorScore = float64(r.Score)
	}
	for _, r := range graph {
		fr := getOrCreate(scores, r.ParentID)
		fr.GraphScore = r.Score
	}

	results := make([]*FusedResult, 0, len(scores))
	for _, fr := range scores {
		fr.Score = w.Lexical*fr.LexicalScore + w.Vector*fr.VectorScore + w.Graph*fr.GraphScore
		if fr.Score <= 0 && fr.LexicalScore <= 0 {
			continue
		}
		results = append(results, fr)
	}

	sort.Slice(results, func(i, j int) bool {
		return compareFused(results[i], results[j])
	})

	return results
}

func getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ID: id}
	m[id] = r
	return r
}

// compareFused reports whether a ranks before b. Ordering is fully
// deterministic: fused score descending, then id ascending.
func compareFused(a, b *FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
