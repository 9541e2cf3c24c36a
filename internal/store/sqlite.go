package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cerr "github.com/Aman-CERP/corpus/internal/errors"
)

// SQLiteDocumentStore implements DocumentStore on SQLite with WAL mode.
// It is the only component with multi-writer consistency guarantees:
// unique document ids and monotonic updated_at.
type SQLiteDocumentStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ DocumentStore = (*SQLiteDocumentStore)(nil)

// NewSQLiteDocumentStore opens (or creates) the document store at path.
// If path is empty, an in-memory store is created for testing.
func NewSQLiteDocumentStore(path string) (*SQLiteDocumentStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteDocumentStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteDocumentStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Authoritative document records. Timestamps are unix nanoseconds so
	-- monotonic updated_at survives sub-second writes.
	CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		content     TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT 'general',
		tags        TEXT NOT NULL DEFAULT '[]',
		origin      TEXT NOT NULL DEFAULT 'note',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id    TEXT PRIMARY KEY,
		parent_id   TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
		ordinal     INTEGER NOT NULL,
		text        TEXT NOT NULL,
		page_number INTEGER NOT NULL DEFAULT 0,
		char_count  INTEGER NOT NULL,
		created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_parent ON chunks(parent_id);
	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDocument inserts or replaces a document with its chunks in one
// transaction. Replacing first drops any chunks from a previous version.
func (s *SQLiteDocumentStore) SaveDocument(ctx context.Context, doc *Document, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("document store is closed")
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (document_id, title, content, category, tags, origin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category = excluded.category,
			tags = excluded.tags,
			origin = excluded.origin,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, doc.Category, string(tags), string(doc.Origin),
		doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE parent_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (chunk_id, parent_id, ordinal, text, page_number, char_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ParentID, c.Ordinal, c.Text, c.PageNumber, c.CharCount, c.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetDocument returns the document or a not-found error.
func (s *SQLiteDocumentStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, title, content, category, tags, origin, created_at, updated_at
		FROM documents WHERE document_id = ?`, id)
	return scanDocument(row)
}

// GetChunk returns a chunk by its id.
func (s *SQLiteDocumentStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, parent_id, ordinal, text, page_number, char_count, created_at
		FROM chunks WHERE chunk_id = ?`, id)

	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, cerr.NotFound(id)
	}
	return c, err
}

// GetChunksByParent returns all chunks of a document ordered by ordinal.
func (s *SQLiteDocumentStore) GetChunksByParent(ctx context.Context, parentID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, parent_id, ordinal, text, page_number, char_count, created_at
		FROM chunks WHERE parent_id = ? ORDER BY ordinal`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListDocuments returns every document ordered by id.
func (s *SQLiteDocumentStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, title, content, category, tags, origin, created_at, updated_at
		FROM documents ORDER BY document_id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocument applies a partial update. The new updated_at is strictly
// greater than the previous one even when the wall clock stalls.
func (s *SQLiteDocumentStore) UpdateDocument(ctx context.Context, id string, fields FieldUpdate) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, title, content, category, tags, origin, created_at, updated_at
		FROM documents WHERE document_id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}

	if fields.Title != nil {
		doc.Title = *fields.Title
	}
	if fields.Content != nil {
		doc.Content = *fields.Content
	}
	if fields.Category != nil {
		doc.Category = *fields.Category
	}
	if fields.Tags != nil {
		doc.Tags = *fields.Tags
	}

	now := time.Now()
	if !now.After(doc.UpdatedAt) {
		now = doc.UpdatedAt.Add(time.Microsecond)
	}
	doc.UpdatedAt = now

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET title = ?, content = ?, category = ?, tags = ?, updated_at = ?
		WHERE document_id = ?`,
		doc.Title, doc.Content, doc.Category, string(tags), doc.UpdatedAt.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	return doc, nil
}

// DeleteDocument removes the document; chunks cascade.
func (s *SQLiteDocumentStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return cerr.NotFound(id)
	}
	return nil
}

// Exists reports whether id names a live document or chunk.
func (s *SQLiteDocumentStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM documents WHERE document_id = ?
		UNION ALL
		SELECT 1 FROM chunks WHERE chunk_id = ?
		LIMIT 1`, id, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence probe: %w", err)
	}
	return true, nil
}

// ScanContent does a case-insensitive substring scan over title and content.
// It deliberately bypasses every derived index.
func (s *SQLiteDocumentStore) ScanContent(ctx context.Context, query string, limit int) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	// Title matches sort before content matches; ties break by id.
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, title, content, category, tags, origin, created_at, updated_at
		FROM documents
		WHERE instr(lower(title), ?) > 0 OR instr(lower(content), ?) > 0
		ORDER BY instr(lower(title), ?) > 0 DESC, document_id
		LIMIT ?`, needle, needle, needle, limit)
	if err != nil {
		return nil, fmt.Errorf("content scan: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents.
func (s *SQLiteDocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteDocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*Document, error) {
	doc, err := scanDocumentFrom(row)
	if err == sql.ErrNoRows {
		return nil, cerr.New(cerr.ErrCodeDocNotFound, "document not found", nil)
	}
	return doc, err
}

func scanDocumentRows(rows *sql.Rows) (*Document, error) {
	return scanDocumentFrom(rows)
}

func scanDocumentFrom(sc scanner) (*Document, error) {
	var (
		doc                  Document
		tags, origin         string
		createdAt, updatedAt int64
	)
	err := sc.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Category, &tags, &origin, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags for %s: %w", doc.ID, err)
	}
	doc.Origin = Origin(origin)
	doc.CreatedAt = time.Unix(0, createdAt)
	doc.UpdatedAt = time.Unix(0, updatedAt)
	return &doc, nil
}

func scanChunk(sc scanner) (*Chunk, error) {
	var (
		c         Chunk
		createdAt int64
	)
	err := sc.Scan(&c.ID, &c.ParentID, &c.Ordinal, &c.Text, &c.PageNumber, &c.CharCount, &createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, createdAt)
	return &c, nil
}
