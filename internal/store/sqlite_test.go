package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/Aman-CERP/corpus/internal/errors"
)

func newDocStore(t *testing.T) *SQLiteDocumentStore {
	t.Helper()
	s, err := NewSQLiteDocumentStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDocument(id string) *Document {
	now := time.Now()
	return &Document{
		ID:        id,
		Title:     "Release Checklist",
		Content:   "Verify migrations, then cut the tag.",
		Category:  "ops",
		Tags:      []string{"release", "checklist"},
		Origin:    OriginNote,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	doc := sampleDocument("doc-1")

	require.NoError(t, s.SaveDocument(ctx, doc, nil))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Category, got.Category)
	assert.Equal(t, doc.Tags, got.Tags)
	assert.Equal(t, OriginNote, got.Origin)
	assert.True(t, got.UpdatedAt.Equal(doc.UpdatedAt))
}

func TestGetDocument_NotFound(t *testing.T) {
	s := newDocStore(t)

	_, err := s.GetDocument(context.Background(), "missing")

	assert.True(t, cerr.IsNotFound(err))
}

func TestSaveDocument_ReplaceDropsOldChunks(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	doc := sampleDocument("doc-1")
	now := time.Now()

	oldChunks := []*Chunk{
		{ID: ChunkID("doc-1", 0), ParentID: "doc-1", Ordinal: 0, Text: "old part", CharCount: 8, CreatedAt: now},
		{ID: ChunkID("doc-1", 1), ParentID: "doc-1", Ordinal: 1, Text: "old tail", CharCount: 8, CreatedAt: now},
	}
	require.NoError(t, s.SaveDocument(ctx, doc, oldChunks))

	newChunks := []*Chunk{
		{ID: ChunkID("doc-1", 0), ParentID: "doc-1", Ordinal: 0, Text: "new part", CharCount: 8, CreatedAt: now},
	}
	require.NoError(t, s.SaveDocument(ctx, doc, newChunks))

	got, err := s.GetChunksByParent(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new part", got[0].Text)

	_, err = s.GetChunk(ctx, ChunkID("doc-1", 1))
	assert.True(t, cerr.IsNotFound(err))
}

func TestGetChunksByParent_OrderedByOrdinal(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	doc := sampleDocument("doc-1")
	now := time.Now()

	chunks := []*Chunk{
		{ID: ChunkID("doc-1", 2), ParentID: "doc-1", Ordinal: 2, Text: "c", CharCount: 1, CreatedAt: now},
		{ID: ChunkID("doc-1", 0), ParentID: "doc-1", Ordinal: 0, Text: "a", CharCount: 1, CreatedAt: now},
		{ID: ChunkID("doc-1", 1), ParentID: "doc-1", Ordinal: 1, Text: "b", CharCount: 1, CreatedAt: now},
	}
	require.NoError(t, s.SaveDocument(ctx, doc, chunks))

	got, err := s.GetChunksByParent(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestUpdateDocument_PartialFields(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveDocument(ctx, sampleDocument("doc-1"), nil))

	category := "archive"
	got, err := s.UpdateDocument(ctx, "doc-1", FieldUpdate{Category: &category})
	require.NoError(t, err)

	assert.Equal(t, "archive", got.Category)
	assert.Equal(t, "Release Checklist", got.Title, "unset fields stay untouched")
	assert.Equal(t, []string{"release", "checklist"}, got.Tags)
}

func TestUpdateDocument_MonotonicUpdatedAt(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveDocument(ctx, sampleDocument("doc-1"), nil))

	title := "t"
	prev, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)

	// Rapid successive updates must still strictly advance updated_at.
	for i := 0; i < 5; i++ {
		got, err := s.UpdateDocument(ctx, "doc-1", FieldUpdate{Title: &title})
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(prev.UpdatedAt),
			"update %d did not advance updated_at", i)
		prev = got
	}
}

func TestUpdateDocument_NotFound(t *testing.T) {
	s := newDocStore(t)
	title := "t"

	_, err := s.UpdateDocument(context.Background(), "missing", FieldUpdate{Title: &title})

	assert.True(t, cerr.IsNotFound(err))
}

func TestDeleteDocument_CascadesChunks(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	now := time.Now()
	chunks := []*Chunk{
		{ID: ChunkID("doc-1", 0), ParentID: "doc-1", Ordinal: 0, Text: "part", CharCount: 4, CreatedAt: now},
	}
	require.NoError(t, s.SaveDocument(ctx, sampleDocument("doc-1"), chunks))

	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))

	_, err := s.GetDocument(ctx, "doc-1")
	assert.True(t, cerr.IsNotFound(err))

	got, err := s.GetChunksByParent(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got, "chunks must cascade with their parent")
}

func TestDeleteDocument_NotFound(t *testing.T) {
	s := newDocStore(t)

	err := s.DeleteDocument(context.Background(), "missing")

	assert.True(t, cerr.IsNotFound(err))
}

func TestExists_DocumentAndChunk(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	now := time.Now()
	chunks := []*Chunk{
		{ID: ChunkID("doc-1", 0), ParentID: "doc-1", Ordinal: 0, Text: "part", CharCount: 4, CreatedAt: now},
	}
	require.NoError(t, s.SaveDocument(ctx, sampleDocument("doc-1"), chunks))

	for _, id := range []string{"doc-1", ChunkID("doc-1", 0)} {
		ok, err := s.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "id %s should exist", id)
	}

	ok, err := s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanContent(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, d := range []struct{ id, title, content string }{
		{"doc-b", "Budget Report", "numbers and more numbers"},
		{"doc-a", "Meeting Notes", "we discussed the budget at length"},
		{"doc-c", "Unrelated", "nothing to see"},
	} {
		require.NoError(t, s.SaveDocument(ctx, &Document{
			ID: d.id, Title: d.title, Content: d.content,
			Category: DefaultCategory, Origin: OriginNote,
			CreatedAt: now, UpdatedAt: now,
		}, nil))
	}

	got, err := s.ScanContent(ctx, "BUDGET", 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "match is case-insensitive over title and content")
	assert.Equal(t, "doc-b", got[0].ID, "title match ranks before content match")
	assert.Equal(t, "doc-a", got[1].ID)
}

func TestScanContent_EmptyQuery(t *testing.T) {
	s := newDocStore(t)

	got, err := s.ScanContent(context.Background(), "   ", 10)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListDocumentsAndCount(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()

	for _, id := range []string{"doc-c", "doc-a", "doc-b"} {
		d := sampleDocument(id)
		require.NoError(t, s.SaveDocument(ctx, d, nil))
	}

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-a", docs[0].ID)
	assert.Equal(t, "doc-b", docs[1].ID)
	assert.Equal(t, "doc-c", docs[2].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSaveDocument_EmptyTagsRoundTrip(t *testing.T) {
	s := newDocStore(t)
	ctx := context.Background()
	doc := sampleDocument("doc-1")
	doc.Tags = nil
	require.NoError(t, s.SaveDocument(ctx, doc, nil))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}
