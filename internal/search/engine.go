package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/corpus/internal/answer"
	"github.com/Aman-CERP/corpus/internal/embed"
	cerr "github.com/Aman-CERP/corpus/internal/errors"
	"github.com/Aman-CERP/corpus/internal/store"
)

// Engine executes queries across the three derived indexes and fuses the
// results. The document store is consulted twice per query: once for
// authoritative enrichment of every hit, and once as the substring fallback
// when all indexes come back empty.
type Engine struct {
	docs     store.DocumentStore
	lexical  store.LexicalIndex
	vector   store.VectorStore
	graph    store.GraphStore
	embedder embed.Embedder
	config   EngineConfig
	fusion   *Fusion
	answerer answer.Answerer
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineOption configures the query engine.
type EngineOption func(*Engine)

// WithAnswerer enables Ask. Without it, Ask returns ErrCodeIndexUnavailable.
func WithAnswerer(a answer.Answerer) EngineOption {
	return func(e *Engine) {
		e.answerer = a
	}
}

// NewEngine creates the query engine. All stores and the embedder are
// required.
func NewEngine(
	docs store.DocumentStore,
	lexical store.LexicalIndex,
	vector store.VectorStore,
	graph store.GraphStore,
	embedder embed.Embedder,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if docs == nil {
		return nil, fmt.Errorf("%w: document store is required", ErrNilDependency)
	}
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if graph == nil {
		return nil, fmt.Errorf("%w: graph store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultEngineConfig().DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = DefaultEngineConfig().MaxLimit
	}
	if config.IndexTimeout <= 0 {
		config.IndexTimeout = DefaultEngineConfig().IndexTimeout
	}
	if config.AskPassages <= 0 {
		config.AskPassages = DefaultEngineConfig().AskPassages
	}
	e := &Engine{
		docs:     docs,
		lexical:  lexical,
		vector:   vector,
		graph:    graph,
		embedder: embedder,
		config:   config,
		fusion:   NewFusion(config.Weights),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs a query. Empty and whitespace-only queries are rejected
// before any index is touched.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*Result, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, cerr.InvalidInput("query cannot be empty")
	}

	opts = e.applyDefaults(opts)

	// Each index gets twice the requested limit so fusion has enough
	// candidates when the lists barely overlap.
	fetchLimit := opts.Limit * 2

	lexResults, vecResults, graphResults := e.fanOut(ctx, query, opts.Mode, fetchLimit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Single-index modes report that index's own normalized score; the
	// fusion weights apply only when indexes are actually combined.
	weights := opts.Weights
	switch opts.Mode {
	case ModeLexical:
		weights = &Weights{Lexical: 1}
	case ModeVector:
		weights = &Weights{Vector: 1}
	}

	fused := e.fusion.Fuse(lexResults, vecResults, graphResults, weights)

	if len(fused) == 0 {
		return e.fallbackScan(ctx, query, opts)
	}

	results, err := e.enrich(ctx, fused)
	if err != nil {
		return nil, err
	}

	results = filterCategory(results, opts.Category)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	slog.Debug("search completed",
		slog.String("mode", string(opts.Mode)),
		slog.Int("lexical_hits", len(lexResults)),
		slog.Int("vector_hits", len(vecResults)),
		slog.Int("graph_hits", len(graphResults)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// fanOut queries the participating indexes in parallel. Each index runs
// under its own timeout; a failed or slow index contributes an empty list
// and a warning, never an error.
func (e *Engine) fanOut(ctx context.Context, query string, mode Mode, limit int) (
	lexResults []*store.LexicalResult,
	vecResults []*store.VectorResult,
	graphResults []*store.GraphResult,
) {
	g, gctx := errgroup.WithContext(ctx)

	if mode == ModeHybrid || mode == ModeLexical {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(gctx, e.config.IndexTimeout)
			defer cancel()
			res, err := e.lexical.Search(ictx, query, limit)
			if err != nil {
				slog.Warn("lexical search degraded",
					slog.String("error", err.Error()))
				return nil
			}
			lexResults = res
			return nil
		})
	}

	if mode == ModeHybrid || mode == ModeVector {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(gctx, e.config.IndexTimeout)
			defer cancel()
			vec, err := e.embedder.Embed(ictx, query)
			if err != nil {
				slog.Warn("query embedding degraded",
					slog.String("error", err.Error()))
				return nil
			}
			res, err := e.vector.Search(ictx, vec, limit)
			if err != nil {
				slog.Warn("vector search degraded",
					slog.String("error", err.Error()))
				return nil
			}
			vecResults = res
			return nil
		})
	}

	if mode == ModeHybrid {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(gctx, e.config.IndexTimeout)
			defer cancel()
			res, err := e.graph.Search(ictx, query, limit)
			if err != nil {
				slog.Warn("graph search degraded",
					slog.String("error", err.Error()))
				return nil
			}
			graphResults = res
			return nil
		})
	}

	_ = g.Wait()
	return lexResults, vecResults, graphResults
}

// fallbackScan is the last resort: a case-insensitive substring scan over
// the authoritative store. Hits carry a flat score and the Fallback mark.
func (e *Engine) fallbackScan(ctx context.Context, query string, opts SearchOptions) ([]*Result, error) {
	docs, err := e.docs.ScanContent(ctx, query, opts.Limit)
	if err != nil {
		return nil, cerr.IndexUnavailable("source store", err)
	}

	if len(docs) > 0 {
		slog.Debug("fallback scan produced results",
			slog.Int("count", len(docs)))
	}

	results := make([]*Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, &Result{
			ID:        d.ID,
			Score:     0.1,
			Fallback:  true,
			Title:     d.Title,
			Content:   d.Content,
			Category:  d.Category,
			Tags:      d.Tags,
			Origin:    d.Origin,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return filterCategory(results, opts.Category), nil
}

// enrich resolves each fused id against the authoritative store. Chunk ids
// resolve to the chunk text plus the parent document's metadata. Ids the
// store no longer knows are dropped silently; they are index orphans pending
// reconciliation.
func (e *Engine) enrich(ctx context.Context, fused []*FusedResult) ([]*Result, error) {
	results := make([]*Result, 0, len(fused))
	for _, f := range fused {
		r, err := e.resolve(ctx, f)
		if err != nil {
			if cerr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) resolve(ctx context.Context, f *FusedResult) (*Result, error) {
	r := &Result{
		ID:           f.ID,
		Score:        f.Score,
		LexicalScore: f.LexicalScore,
		VectorScore:  f.VectorScore,
		GraphScore:   f.GraphScore,
	}

	if doc, err := e.docs.GetDocument(ctx, f.ID); err == nil {
		r.Title = doc.Title
		r.Content = doc.Content
		r.Category = doc.Category
		r.Tags = doc.Tags
		r.Origin = doc.Origin
		r.UpdatedAt = doc.UpdatedAt
		return r, nil
	} else if !cerr.IsNotFound(err) {
		return nil, err
	}

	chunk, err := e.docs.GetChunk(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	parent, err := e.docs.GetDocument(ctx, chunk.ParentID)
	if err != nil {
		return nil, err
	}
	r.ParentID = chunk.ParentID
	r.Title = parent.Title
	r.Content = chunk.Text
	r.Category = parent.Category
	r.Tags = parent.Tags
	r.Origin = parent.Origin
	r.UpdatedAt = parent.UpdatedAt
	return r, nil
}

// Ask retrieves passages for the question and composes an answer. The
// answerer's confidence is passed through unchanged.
func (e *Engine) Ask(ctx context.Context, question string) (*AskResponse, error) {
	if e.answerer == nil {
		return nil, cerr.IndexUnavailable("answerer", errors.New("no answerer configured"))
	}

	results, err := e.Search(ctx, question, SearchOptions{
		Mode:  ModeHybrid,
		Limit: e.config.AskPassages,
	})
	if err != nil {
		return nil, err
	}

	passages := make([]answer.Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, answer.Passage{
			Title: r.Title,
			Text:  r.Content,
			Score: r.Score,
		})
	}

	resp, err := e.answerer.Answer(ctx, question, passages)
	if err != nil {
		return nil, err
	}
	return &AskResponse{
		Answer:     resp.Answer,
		Confidence: resp.Confidence,
		Sources:    results,
	}, nil
}

func (e *Engine) applyDefaults(opts SearchOptions) SearchOptions {
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if opts.Limit <= 0 {
		opts.Limit = e.config.DefaultLimit
	}
	if opts.Limit > e.config.MaxLimit {
		opts.Limit = e.config.MaxLimit
	}
	return opts
}

func filterCategory(results []*Result, category string) []*Result {
	if category == "" {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Category == category {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
