package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/corpus/internal/embed"
	cerr "github.com/Aman-CERP/corpus/internal/errors"
	"github.com/Aman-CERP/corpus/internal/store"
)

type testRig struct {
	docs    *store.SQLiteDocumentStore
	lexical *store.BleveLexicalIndex
	vector  *store.HNSWVectorStore
	graph   *store.SQLiteGraphStore
	engine  *Engine
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	docs, err := store.NewSQLiteDocumentStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	lexical, err := store.NewBleveLexicalIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	embedder := embed.NewStaticEmbedder()
	vector, err := store.NewHNSWVectorStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vector.Close() })

	graph, err := store.NewSQLiteGraphStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = graph.Close() })

	engine, err := NewEngine(docs, lexical, vector, graph, embedder, DefaultEngineConfig())
	require.NoError(t, err)

	return &testRig{docs: docs, lexical: lexical, vector: vector, graph: graph, engine: engine}
}

// addDocument indexes a document everywhere, the way the write path does.
func (r *testRig) addDocument(t *testing.T, id, title, content string) {
	t.Helper()
	ctx := context.Background()

	now := time.Now()
	doc := &store.Document{
		ID: id, Title: title, Content: content,
		Category: store.DefaultCategory, Origin: store.OriginNote,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, r.docs.SaveDocument(ctx, doc, nil))

	docs, err := r.docs.ListDocuments(ctx)
	require.NoError(t, err)
	lexDocs := make([]*store.LexicalDocument, len(docs))
	for i, d := range docs {
		lexDocs[i] = &store.LexicalDocument{ID: d.ID, Title: d.Title, Text: d.Content}
	}
	require.NoError(t, r.lexical.Rebuild(ctx, lexDocs))

	embedder := embed.NewStaticEmbedder()
	vec, err := embedder.Embed(ctx, title+"\n"+content)
	require.NoError(t, err)
	require.NoError(t, r.vector.Add(ctx, []string{id}, [][]float32{vec}))
}

func TestSearch_HybridScenario(t *testing.T) {
	// Given the Quarterly Budget document indexed everywhere
	r := newTestRig(t)
	content := "The AI project budget is $500,000 for 2024."
	r.addDocument(t, "doc-budget", "Quarterly Budget", content)
	require.NoError(t, r.graph.Link(context.Background(), "doc-budget", "AI project", "other"))

	// When searching in hybrid mode
	results, err := r.engine.Search(context.Background(), "AI project budget", SearchOptions{
		Mode:  ModeHybrid,
		Limit: 5,
	})

	// Then the document comes back with a positive score and the exact
	// stored content
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-budget", results[0].ID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Equal(t, content, results[0].Content)
	assert.Equal(t, "Quarterly Budget", results[0].Title)
}

func TestSearch_LexicalModeRoundTrip(t *testing.T) {
	r := newTestRig(t)
	r.addDocument(t, "doc-1", "Deployment Runbook", "Steps for deploying the service safely.")
	r.addDocument(t, "doc-2", "Meeting Notes", "Discussed roadmap priorities for the quarter.")

	results, err := r.engine.Search(context.Background(), "Deployment Runbook", SearchOptions{
		Mode:  ModeLexical,
		Limit: 10,
	})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-1", results[0].ID)
	assert.Greater(t, results[0].LexicalScore, 0.0)
	assert.Zero(t, results[0].VectorScore)
}

func TestSearch_LexicalModeScoreIsUnweighted(t *testing.T) {
	r := newTestRig(t)
	r.addDocument(t, "doc-1", "Deployment Runbook", "Steps for deploying the service safely.")

	results, err := r.engine.Search(context.Background(), "Deployment Runbook", SearchOptions{
		Mode:  ModeLexical,
		Limit: 5,
	})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	// The top keyword hit normalizes to 1.0 and the mode reports it as-is,
	// with no fusion weight applied.
	assert.InDelta(t, results[0].LexicalScore, results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSearch_VectorModeScoreIsUnweighted(t *testing.T) {
	r := newTestRig(t)
	r.addDocument(t, "doc-1", "Deployment Runbook", "Steps for deploying the service safely.")

	results, err := r.engine.Search(context.Background(), "Deployment Runbook\nSteps for deploying the service safely.", SearchOptions{
		Mode:  ModeVector,
		Limit: 5,
	})

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.InDelta(t, results[0].VectorScore, results[0].Score, 1e-9)
	assert.Greater(t, results[0].Score, 0.9, "near-identical text scores close to 1.0")
}

func TestSearch_FallbackScanWhenIndexesEmpty(t *testing.T) {
	// Given a document only the source store knows about
	r := newTestRig(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, r.docs.SaveDocument(ctx, &store.Document{
		ID: "doc-raw", Title: "Quarterly Budget", Content: "Numbers for the quarter.",
		Category: store.DefaultCategory, Origin: store.OriginNote,
		CreatedAt: now, UpdatedAt: now,
	}, nil))

	// When searching while every derived index is empty
	results, err := r.engine.Search(ctx, "Quarterly", SearchOptions{Limit: 5})

	// Then the substring fallback still finds it
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-raw", results[0].ID)
	assert.True(t, results[0].Fallback)
}

func TestSearch_EmptyQueryIsInvalidInput(t *testing.T) {
	r := newTestRig(t)

	results, err := r.engine.Search(context.Background(), "   ", SearchOptions{})

	assert.True(t, cerr.IsInvalidInput(err))
	assert.Nil(t, results)
}

func TestSearch_CategoryFilter(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	now := time.Now()
	for _, d := range []struct{ id, title, category string }{
		{"doc-a", "Budget Plan", "finance"},
		{"doc-b", "Budget Review", "general"},
	} {
		require.NoError(t, r.docs.SaveDocument(ctx, &store.Document{
			ID: d.id, Title: d.title, Content: "budget text",
			Category: d.category, Origin: store.OriginNote,
			CreatedAt: now, UpdatedAt: now,
		}, nil))
	}
	docs, err := r.docs.ListDocuments(ctx)
	require.NoError(t, err)
	lexDocs := make([]*store.LexicalDocument, len(docs))
	for i, d := range docs {
		lexDocs[i] = &store.LexicalDocument{ID: d.ID, Title: d.Title, Text: d.Content}
	}
	require.NoError(t, r.lexical.Rebuild(ctx, lexDocs))

	results, err := r.engine.Search(ctx, "budget", SearchOptions{Category: "finance", Limit: 10})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].ID)
}

func TestSearch_DropsIndexOrphans(t *testing.T) {
	// Given a lexical entry whose source record is gone
	r := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, r.lexical.Rebuild(ctx, []*store.LexicalDocument{
		{ID: "ghost", Title: "Ghost Document", Text: "spooky orphaned entry"},
	}))

	results, err := r.engine.Search(ctx, "spooky orphaned", SearchOptions{Mode: ModeLexical, Limit: 5})

	// Then enrichment silently drops the orphan
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ChunkResultsCarryParentMetadata(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	now := time.Now()

	doc := &store.Document{
		ID: "doc-pdf", Title: "Annual Report", Content: "full report text",
		Category: "reports", Tags: []string{"annual"}, Origin: store.OriginPDF,
		CreatedAt: now, UpdatedAt: now,
	}
	chunkID := store.ChunkID("doc-pdf", 0)
	chunks := []*store.Chunk{{
		ID: chunkID, ParentID: "doc-pdf", Ordinal: 0,
		Text: "Revenue grew substantially this fiscal year.", PageNumber: 3,
		CharCount: 44, CreatedAt: now,
	}}
	require.NoError(t, r.docs.SaveDocument(ctx, doc, chunks))
	require.NoError(t, r.lexical.Rebuild(ctx, []*store.LexicalDocument{
		{ID: chunkID, Title: doc.Title, Text: chunks[0].Text},
	}))

	results, err := r.engine.Search(ctx, "revenue fiscal year", SearchOptions{Mode: ModeLexical, Limit: 5})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunkID, results[0].ID)
	assert.Equal(t, "doc-pdf", results[0].ParentID)
	assert.Equal(t, "Annual Report", results[0].Title)
	assert.Equal(t, chunks[0].Text, results[0].Content)
	assert.Equal(t, "reports", results[0].Category)
	assert.Equal(t, []string{"annual"}, results[0].Tags)
}

func TestNewEngine_NilDependencies(t *testing.T) {
	r := newTestRig(t)
	embedder := embed.NewStaticEmbedder()

	_, err := NewEngine(nil, r.lexical, r.vector, r.graph, embedder, DefaultEngineConfig())
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewEngine(r.docs, r.lexical, r.vector, r.graph, nil, DefaultEngineConfig())
	assert.ErrorIs(t, err, ErrNilDependency)
}
