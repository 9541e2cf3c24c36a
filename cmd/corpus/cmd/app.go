package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/corpus/internal/answer"
	"github.com/Aman-CERP/corpus/internal/chunk"
	"github.com/Aman-CERP/corpus/internal/config"
	"github.com/Aman-CERP/corpus/internal/embed"
	"github.com/Aman-CERP/corpus/internal/extract"
	"github.com/Aman-CERP/corpus/internal/index"
	"github.com/Aman-CERP/corpus/internal/search"
	"github.com/Aman-CERP/corpus/internal/store"
)

const vectorSnapshotName = "vectors.gob"

// app wires the stores, coordinator, and query engine for one CLI
// invocation. The lexical index is memory-only, so startup rebuilds it from
// the source store before the first query.
type app struct {
	cfg         *config.Config
	docs        store.DocumentStore
	lexical     store.LexicalIndex
	vector      store.VectorStore
	graph       store.GraphStore
	coordinator *index.Coordinator
	engine      *search.Engine
	lock        *store.DirLock
	dataDir     string
}

// openApp assembles the full stack from the configured data directory.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dataDir := cfg.Storage.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lock := store.NewDirLock(dataDir)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("data dir %s is in use by another corpus process", dataDir)
	}

	a := &app{cfg: cfg, lock: lock, dataDir: dataDir}
	if err := a.open(ctx); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context) error {
	docs, err := store.NewSQLiteDocumentStore(filepath.Join(a.dataDir, "documents.db"))
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	a.docs = docs

	graph, err := store.NewSQLiteGraphStore(filepath.Join(a.dataDir, "graph.db"))
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	a.graph = graph

	lexical, err := store.NewBleveLexicalIndex()
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}
	a.lexical = lexical

	var embedder embed.Embedder = embed.NewStaticEmbedder()
	embedder = embed.NewCachedEmbedder(embedder, a.cfg.Embeddings.CacheSize)

	vector, err := store.NewHNSWVectorStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	a.vector = vector

	snapshot := filepath.Join(a.dataDir, vectorSnapshotName)
	if _, statErr := os.Stat(snapshot); statErr == nil {
		if err := vector.Load(snapshot); err != nil {
			slog.Warn("vector snapshot load failed, starting empty",
				slog.String("path", snapshot),
				slog.String("error", err.Error()))
		}
	}

	var extractor extract.Extractor = extract.NewPatternExtractor()
	if a.cfg.LLM.UseLLMExtraction && a.cfg.LLM.APIKey != "" {
		extractor = extract.NewOpenAIExtractor(a.cfg.LLM.APIKey, a.cfg.LLM.Model)
	}

	chunker := chunk.NewEngine(a.cfg.Search.ChunkSize, a.cfg.Search.ChunkOverlap)

	coordinator, err := index.New(docs, lexical, vector, graph, embedder, extractor, chunker)
	if err != nil {
		return err
	}
	a.coordinator = coordinator

	engineCfg := search.EngineConfig{
		DefaultLimit: a.cfg.Search.DefaultLimit,
		MaxLimit:     a.cfg.Search.MaxLimit,
		IndexTimeout: a.cfg.Search.IndexTimeout,
		Weights: search.Weights{
			Lexical: a.cfg.Search.LexicalWeight,
			Vector:  a.cfg.Search.VectorWeight,
			Graph:   a.cfg.Search.GraphWeight,
		},
	}
	var opts []search.EngineOption
	if a.cfg.LLM.APIKey != "" {
		opts = append(opts, search.WithAnswerer(
			answer.NewOpenAIAnswerer(a.cfg.LLM.APIKey, a.cfg.LLM.Model)))
	}
	engine, err := search.NewEngine(docs, lexical, vector, graph, embedder, engineCfg, opts...)
	if err != nil {
		return err
	}
	a.engine = engine

	// The lexical index lives in memory only; hydrate it from the source
	// store so this invocation can answer keyword queries.
	if err := coordinator.RebuildLexicalIndex(ctx); err != nil {
		slog.Warn("startup lexical rebuild failed",
			slog.String("error", err.Error()))
	}

	return nil
}

// close saves the vector snapshot and releases everything.
func (a *app) close() error {
	var errs []error

	if a.vector != nil {
		if err := a.vector.Save(filepath.Join(a.dataDir, vectorSnapshotName)); err != nil {
			errs = append(errs, fmt.Errorf("save vector snapshot: %w", err))
		}
		errs = append(errs, a.vector.Close())
	}
	if a.lexical != nil {
		errs = append(errs, a.lexical.Close())
	}
	if a.graph != nil {
		errs = append(errs, a.graph.Close())
	}
	if a.docs != nil {
		errs = append(errs, a.docs.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
	}

	return errors.Join(errs...)
}
