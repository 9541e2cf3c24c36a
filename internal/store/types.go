// Package store provides the persistence layer: the authoritative document
// store (SQLite), the lexical index (Bleve), the vector index (HNSW), and
// the entity graph (SQLite). The document store is the single source of
// truth; every other store holds derived, rebuildable copies.
package store

import (
	"context"
	"fmt"
	"time"
)

// Origin identifies where a document's content came from.
type Origin string

const (
	// OriginNote is free-form text; chunked only when it exceeds the
	// configured chunk size.
	OriginNote Origin = "note"
	// OriginPDF is PDF-extracted text; always chunked.
	OriginPDF Origin = "pdf"
)

// DefaultCategory is assigned when a document is created without one.
const DefaultCategory = "general"

// Document is the unit of storage, owned exclusively by the DocumentStore.
type Document struct {
	ID        string
	Title     string
	Content   string
	Category  string
	Tags      []string
	Origin    Origin
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a contiguous sub-span of a document's content, produced when the
// content exceeds a single indexing unit. Chunks are created and deleted
// only alongside their parent document.
type Chunk struct {
	ID         string // deterministic: "<parent_id>:<ordinal>"
	ParentID   string
	Ordinal    int
	Text       string
	PageNumber int // 0 when the origin has no pages
	CharCount  int
	CreatedAt  time.Time
}

// ChunkID builds the deterministic chunk identifier for a parent and ordinal.
func ChunkID(parentID string, ordinal int) string {
	return fmt.Sprintf("%s:%d", parentID, ordinal)
}

// FieldUpdate describes a partial document update. Nil fields are unchanged.
type FieldUpdate struct {
	Title    *string
	Content  *string
	Category *string
	Tags     *[]string
}

// Empty reports whether the update changes nothing.
func (u FieldUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Category == nil && u.Tags == nil
}

// DocumentStore is the authoritative relational store.
type DocumentStore interface {
	// SaveDocument inserts or replaces a document together with its chunks.
	// Replacing removes any chunks from a previous version.
	SaveDocument(ctx context.Context, doc *Document, chunks []*Chunk) error

	// GetDocument returns the document or ErrCodeDocNotFound.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// GetChunk returns a chunk by its id, or ErrCodeDocNotFound.
	GetChunk(ctx context.Context, id string) (*Chunk, error)

	// GetChunksByParent returns all chunks of a document ordered by ordinal.
	GetChunksByParent(ctx context.Context, parentID string) ([]*Chunk, error)

	// ListDocuments returns all documents ordered by id. Used for lexical
	// index rebuilds; corpora here are small enough for a full read.
	ListDocuments(ctx context.Context) ([]*Document, error)

	// UpdateDocument applies a partial update and bumps updated_at
	// monotonically. Returns ErrCodeDocNotFound if absent.
	UpdateDocument(ctx context.Context, id string, fields FieldUpdate) (*Document, error)

	// DeleteDocument removes the document and its chunks. Returns
	// ErrCodeDocNotFound if absent.
	DeleteDocument(ctx context.Context, id string) error

	// Exists reports whether id names a live document or chunk. This is the
	// reconciliation probe: read-only and safe under concurrent traffic.
	Exists(ctx context.Context, id string) (bool, error)

	// ScanContent does a case-insensitive substring scan over title and
	// content. This is the last-resort fallback when every derived index
	// comes back empty.
	ScanContent(ctx context.Context, query string, limit int) ([]*Document, error)

	// Count returns the number of documents.
	Count(ctx context.Context) (int, error)

	Close() error
}

// LexicalDocument is the indexing unit handed to the lexical index.
type LexicalDocument struct {
	ID    string // document or chunk id
	Title string // parent title; indexed with repetition weight
	Text  string
}

// LexicalResult is a single keyword hit with a score normalized to [0,1].
type LexicalResult struct {
	ID    string
	Score float64
}

// LexicalIndex ranks keyword queries over the indexed corpus. The index has
// no partial-update primitive: mutation is whole-corpus Rebuild plus
// Remove on the live snapshot. Readers never observe a half-built index.
type LexicalIndex interface {
	// Rebuild replaces the entire index with a fresh one built from docs,
	// swapping it in atomically.
	Rebuild(ctx context.Context, docs []*LexicalDocument) error

	// Search returns up to limit results ranked by BM25, scores in [0,1].
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Remove deletes one id from the live snapshot.
	Remove(ctx context.Context, id string) error

	// AllIDs returns every indexed id, for consistency checks.
	AllIDs() []string

	// Count returns the number of indexed entries.
	Count() int

	Close() error
}

// VectorResult is a single similarity hit. Score is cosine similarity
// mapped into [0,1].
type VectorResult struct {
	ID    string
	Score float32
}

// VectorStore provides nearest-neighbor search over fixed-dimension
// embeddings.
type VectorStore interface {
	// Add inserts vectors by id, replacing existing entries.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns the k nearest neighbors of query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns every stored id, for consistency checks.
	AllIDs() []string

	// Contains reports whether id is stored.
	Contains(id string) bool

	// Count returns the number of stored vectors.
	Count() int

	// Save / Load persist the index as a snapshot file.
	Save(path string) error
	Load(path string) error

	Close() error
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension.
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}

// Entity is a named thing discovered inside a document or chunk.
type Entity struct {
	Name string
	Type string // person, organization, location, date, other
}

// Relationship is a typed directed edge between two entities.
type Relationship struct {
	SourceEntity string
	SourceType   string
	Type         string
	TargetEntity string
	TargetType   string
	Confidence   float64
	Context      string
}

// GraphResult is a parent (document or chunk) reached through the graph,
// scored by the entity-overlap heuristic, capped at 1.0.
type GraphResult struct {
	ParentID      string
	Score         float64
	MatchedEntity string
}

// GraphStore persists entities, relationships, and MENTIONS links from
// documents/chunks to entities. It never extracts anything itself; it
// stores whatever structured extraction result it is handed.
type GraphStore interface {
	// UpsertEntity inserts or refreshes an entity node.
	UpsertEntity(ctx context.Context, name, entityType string) error

	// UpsertRelationship inserts or refreshes a typed edge between two
	// entities, creating the endpoints if needed.
	UpsertRelationship(ctx context.Context, rel *Relationship) error

	// Link records a MENTIONS edge from a parent document/chunk to an
	// entity, creating the entity if needed.
	Link(ctx context.Context, parentID, entityName, entityType string) error

	// QueryByEntity returns parent ids mentioning the named entity.
	QueryByEntity(ctx context.Context, entityName string) ([]string, error)

	// Search scores parents by how many query-matched entities they share.
	Search(ctx context.Context, query string, limit int) ([]*GraphResult, error)

	// DeleteParent detach-deletes a parent: its MENTIONS edges go, shared
	// entity nodes stay for other parents.
	DeleteParent(ctx context.Context, parentID string) error

	// ParentIDs returns every parent id with at least one edge, for
	// consistency checks.
	ParentIDs(ctx context.Context) ([]string, error)

	Close() error
}
