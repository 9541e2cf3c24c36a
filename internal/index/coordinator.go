// Package index owns the write path: every create, update, and delete goes
// through the Coordinator, which fans writes out to the source store and the
// three derived indexes with explicit compensation. Consistency across the
// four stores is eventual and self-healing, never transactional.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/corpus/internal/chunk"
	"github.com/Aman-CERP/corpus/internal/embed"
	cerr "github.com/Aman-CERP/corpus/internal/errors"
	"github.com/Aman-CERP/corpus/internal/extract"
	"github.com/Aman-CERP/corpus/internal/store"
)

// Coordinator is the single entry point for all mutating operations.
//
// Write ordering for create: vector index first (cheapest to roll back by
// id-delete), then the source store. A source store failure deletes the
// vector pre-write and fails the operation. Lexical rebuild and graph
// extraction follow best-effort: their failures are logged, not returned,
// and reconciliation repairs the drift later.
type Coordinator struct {
	docs      store.DocumentStore
	lexical   store.LexicalIndex
	vector    store.VectorStore
	graph     store.GraphStore
	embedder  embed.Embedder
	extractor extract.Extractor
	chunker   *chunk.Engine

	// rebuilds coalesces concurrent lexical rebuilds into one flight.
	rebuilds singleflight.Group
}

// CreateRequest describes a document to ingest.
type CreateRequest struct {
	Title    string
	Content  string
	Category string
	Tags     []string

	// Origin defaults to OriginNote. PDF-origin content always chunks.
	Origin store.Origin

	// Pages carries per-page text for PDF origin. When set, chunking runs
	// per page and chunks record their source page number.
	Pages []chunk.Page
}

// New creates a Coordinator. A nil extractor falls back to the pattern
// extractor so graph indexing always has a collaborator.
func New(
	docs store.DocumentStore,
	lexical store.LexicalIndex,
	vector store.VectorStore,
	graph store.GraphStore,
	embedder embed.Embedder,
	extractor extract.Extractor,
	chunker *chunk.Engine,
) (*Coordinator, error) {
	if docs == nil || lexical == nil || vector == nil || graph == nil || embedder == nil {
		return nil, errors.New("index: all stores and the embedder are required")
	}
	if chunker == nil {
		chunker = chunk.NewEngine(0, 0)
	}
	if extractor == nil {
		extractor = extract.NewPatternExtractor()
	}
	return &Coordinator{
		docs:      docs,
		lexical:   lexical,
		vector:    vector,
		graph:     graph,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
	}, nil
}

// indexUnit is one addressable entry in the derived indexes: either a whole
// document or one chunk of it.
type indexUnit struct {
	id   string
	text string
}

// Create ingests a document: chunk, pre-write vectors, persist, then
// best-effort lexical rebuild and graph extraction.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (*store.Document, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &store.Document{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		Tags:      req.Tags,
		Origin:    req.Origin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if doc.Category == "" {
		doc.Category = store.DefaultCategory
	}
	if doc.Origin == "" {
		doc.Origin = store.OriginNote
	}

	chunks := c.chunkDocument(doc, req.Pages)
	units := unitsFor(doc, chunks)

	ids, vectors, err := c.embedUnits(ctx, units)
	if err != nil {
		return nil, cerr.IndexWriteFailed("vector", err)
	}

	// Vector pre-write. Rolled back by id-delete if persistence fails.
	if err := c.vector.Add(ctx, ids, vectors); err != nil {
		return nil, cerr.IndexWriteFailed("vector", err)
	}

	if err := c.docs.SaveDocument(ctx, doc, chunks); err != nil {
		if delErr := c.vector.Delete(ctx, ids); delErr != nil {
			slog.Warn("vector rollback failed, reconcile will remove orphans",
				slog.String("document_id", doc.ID),
				slog.String("error", delErr.Error()))
		}
		return nil, cerr.IndexWriteFailed("source store", err)
	}

	c.rebuildLexicalBestEffort(ctx, doc.ID)
	c.indexGraphBestEffort(ctx, units)

	slog.Info("document created",
		slog.String("document_id", doc.ID),
		slog.String("origin", string(doc.Origin)),
		slog.Int("chunks", len(chunks)))

	return doc, nil
}

// Update applies a partial update. The source store write is required; when
// title or content changed, the derived indexes are refreshed best-effort.
func (c *Coordinator) Update(ctx context.Context, id string, fields store.FieldUpdate) (*store.Document, error) {
	if fields.Empty() {
		return nil, cerr.InvalidInput("update changes no fields")
	}
	if fields.Title != nil && *fields.Title == "" {
		return nil, cerr.InvalidInput("title cannot be empty")
	}
	if fields.Content != nil && *fields.Content == "" {
		return nil, cerr.InvalidInput("content cannot be empty")
	}

	oldChunks, err := c.docs.GetChunksByParent(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := c.docs.UpdateDocument(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	if fields.Title == nil && fields.Content == nil {
		// Category and tag changes live only in the source store; the
		// enrichment step reads them authoritatively at query time.
		return doc, nil
	}

	newChunks := oldChunks
	if fields.Content != nil {
		newChunks = c.chunkDocument(doc, nil)
		if err := c.docs.SaveDocument(ctx, doc, newChunks); err != nil {
			return nil, cerr.IndexWriteFailed("source store", err)
		}
	}
	units := unitsFor(doc, newChunks)

	if ids, vectors, err := c.embedUnits(ctx, units); err != nil {
		slog.Warn("re-embed failed, vector index stale until next update",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
	} else if err := c.vector.Add(ctx, ids, vectors); err != nil {
		slog.Warn("vector refresh failed",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
	} else {
		c.dropStaleVectors(ctx, oldChunks, newChunks, id)
	}

	c.rebuildLexicalBestEffort(ctx, id)

	for _, u := range unitsFor(doc, oldChunks) {
		if err := c.graph.DeleteParent(ctx, u.id); err != nil {
			slog.Warn("graph detach failed during update",
				slog.String("parent_id", u.id),
				slog.String("error", err.Error()))
		}
	}
	c.indexGraphBestEffort(ctx, units)

	return doc, nil
}

// Delete removes a document from all four stores in order: source store,
// vector, lexical, graph. Every step is attempted regardless of earlier
// failures; NotFound is reported only when the source store never had the
// record. Deleting twice is safe.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	var errs []error

	// Chunk ids are needed for the derived deletes; fetch before the
	// source row disappears.
	chunks, err := c.docs.GetChunksByParent(ctx, id)
	if err != nil {
		slog.Warn("chunk lookup failed during delete",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
	}
	unitIDs := []string{id}
	for _, ch := range chunks {
		unitIDs = append(unitIDs, ch.ID)
	}

	if err := c.docs.DeleteDocument(ctx, id); err != nil {
		errs = append(errs, err)
	}

	if err := c.vector.Delete(ctx, unitIDs); err != nil {
		slog.Warn("vector delete failed, orphans remain until reconcile",
			slog.String("document_id", id),
			slog.String("error", err.Error()))
		errs = append(errs, cerr.IndexUnavailable("vector", err))
	}

	for _, uid := range unitIDs {
		if err := c.lexical.Remove(ctx, uid); err != nil {
			slog.Warn("lexical remove failed, orphans remain until reconcile",
				slog.String("id", uid),
				slog.String("error", err.Error()))
			errs = append(errs, cerr.IndexUnavailable("lexical", err))
			break
		}
	}

	for _, uid := range unitIDs {
		if err := c.graph.DeleteParent(ctx, uid); err != nil {
			slog.Warn("graph detach failed, orphans remain until reconcile",
				slog.String("parent_id", uid),
				slog.String("error", err.Error()))
			errs = append(errs, cerr.IndexUnavailable("graph", err))
			break
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("document deleted",
		slog.String("document_id", id),
		slog.Int("units", len(unitIDs)))
	return nil
}

// RebuildLexicalIndex rebuilds the lexical index from the full corpus.
// Concurrent callers share one rebuild.
func (c *Coordinator) RebuildLexicalIndex(ctx context.Context) error {
	_, err, _ := c.rebuilds.Do("lexical-rebuild", func() (any, error) {
		return nil, c.rebuildLexical(ctx)
	})
	return err
}

func (c *Coordinator) rebuildLexical(ctx context.Context) error {
	docs, err := c.docs.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list corpus: %w", err)
	}

	var lexDocs []*store.LexicalDocument
	for _, doc := range docs {
		chunks, err := c.docs.GetChunksByParent(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("list chunks for %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			lexDocs = append(lexDocs, &store.LexicalDocument{
				ID:    doc.ID,
				Title: doc.Title,
				Text:  doc.Content,
			})
			continue
		}
		for _, ch := range chunks {
			lexDocs = append(lexDocs, &store.LexicalDocument{
				ID:    ch.ID,
				Title: doc.Title,
				Text:  ch.Text,
			})
		}
	}

	return c.lexical.Rebuild(ctx, lexDocs)
}

func (c *Coordinator) rebuildLexicalBestEffort(ctx context.Context, docID string) {
	if err := c.RebuildLexicalIndex(ctx); err != nil {
		slog.Warn("lexical rebuild failed, keyword search stale until next write",
			slog.String("document_id", docID),
			slog.String("error", err.Error()))
	}
}

// indexGraphBestEffort runs extraction per unit and persists entities,
// relationships, and MENTIONS links. Extraction failures never fail a write.
func (c *Coordinator) indexGraphBestEffort(ctx context.Context, units []indexUnit) {
	for _, u := range units {
		result, err := c.extractor.Extract(ctx, u.text)
		if err != nil {
			slog.Warn("extraction failed, unit absent from graph",
				slog.String("id", u.id),
				slog.String("error", err.Error()))
			continue
		}
		for _, ent := range result.Entities {
			if err := c.graph.Link(ctx, u.id, ent.Name, ent.Type); err != nil {
				slog.Warn("graph link failed",
					slog.String("id", u.id),
					slog.String("entity", ent.Name),
					slog.String("error", err.Error()))
			}
		}
		for i := range result.Relationships {
			if err := c.graph.UpsertRelationship(ctx, &result.Relationships[i]); err != nil {
				slog.Warn("graph relationship upsert failed",
					slog.String("id", u.id),
					slog.String("error", err.Error()))
			}
		}
	}
}

// chunkDocument decides whether and how to chunk. PDF origin always chunks;
// notes chunk only above the chunk-size threshold.
func (c *Coordinator) chunkDocument(doc *store.Document, pages []chunk.Page) []*store.Chunk {
	var passages []chunk.Passage
	switch {
	case doc.Origin == store.OriginPDF && len(pages) > 0:
		passages = c.chunker.SplitPages(pages)
	case doc.Origin == store.OriginPDF:
		passages = c.chunker.Split(doc.Content)
	case len(doc.Content) > c.chunker.ChunkSize():
		passages = c.chunker.Split(doc.Content)
	default:
		return nil
	}

	chunks := make([]*store.Chunk, len(passages))
	for i, p := range passages {
		chunks[i] = &store.Chunk{
			ID:         store.ChunkID(doc.ID, p.Ordinal),
			ParentID:   doc.ID,
			Ordinal:    p.Ordinal,
			Text:       p.Text,
			PageNumber: p.Page,
			CharCount:  p.CharCount,
			CreatedAt:  doc.CreatedAt,
		}
	}
	return chunks
}

// unitsFor returns the addressable index units: the chunks when the
// document is chunked, otherwise the document itself.
func unitsFor(doc *store.Document, chunks []*store.Chunk) []indexUnit {
	if len(chunks) == 0 {
		return []indexUnit{{id: doc.ID, text: doc.Title + "\n" + doc.Content}}
	}
	units := make([]indexUnit, len(chunks))
	for i, ch := range chunks {
		units[i] = indexUnit{id: ch.ID, text: ch.Text}
	}
	return units
}

func (c *Coordinator) embedUnits(ctx context.Context, units []indexUnit) ([]string, [][]float32, error) {
	ids := make([]string, len(units))
	texts := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.id
		texts[i] = u.text
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embed %d units: %w", len(units), err)
	}
	return ids, vectors, nil
}

// dropStaleVectors deletes vector entries left behind by an update: chunk
// ids no longer produced, or the doc-level vector once the document becomes
// chunked.
func (c *Coordinator) dropStaleVectors(ctx context.Context, oldChunks, newChunks []*store.Chunk, docID string) {
	kept := make(map[string]bool, len(newChunks))
	for _, ch := range newChunks {
		kept[ch.ID] = true
	}
	var stale []string
	for _, ch := range oldChunks {
		if !kept[ch.ID] {
			stale = append(stale, ch.ID)
		}
	}
	if len(oldChunks) == 0 && len(newChunks) > 0 {
		stale = append(stale, docID)
	}
	if len(stale) == 0 {
		return
	}
	if err := c.vector.Delete(ctx, stale); err != nil {
		slog.Warn("stale vector cleanup failed, reconcile will remove orphans",
			slog.String("document_id", docID),
			slog.String("error", err.Error()))
	}
}

func validateCreate(req CreateRequest) error {
	if req.Title == "" {
		return cerr.InvalidInput("title cannot be empty")
	}
	if req.Content == "" && len(req.Pages) == 0 {
		return cerr.InvalidInput("content cannot be empty")
	}
	if req.Origin != "" && req.Origin != store.OriginNote && req.Origin != store.OriginPDF {
		return cerr.InvalidInput(fmt.Sprintf("unknown origin %q", req.Origin))
	}
	return nil
}
