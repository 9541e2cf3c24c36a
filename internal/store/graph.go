package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// MentionsRelType is the default relationship linking a parent document or
// chunk to an entity it mentions.
const MentionsRelType = "MENTIONS"

// SQLiteGraphStore implements GraphStore as a property graph over three
// SQLite tables: entity nodes, entity-to-entity edges, and MENTIONS edges
// from documents/chunks to entities.
type SQLiteGraphStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Verify interface implementation at compile time
var _ GraphStore = (*SQLiteGraphStore)(nil)

// NewSQLiteGraphStore opens (or creates) the graph store at path.
// If path is empty, an in-memory store is created for testing.
func NewSQLiteGraphStore(path string) (*SQLiteGraphStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	g := &SQLiteGraphStore{db: db}
	if err := g.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return g, nil
}

func (g *SQLiteGraphStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		name        TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relationships (
		source_entity TEXT NOT NULL,
		source_type   TEXT NOT NULL,
		rel_type      TEXT NOT NULL,
		target_entity TEXT NOT NULL,
		target_type   TEXT NOT NULL,
		confidence    REAL NOT NULL DEFAULT 0,
		context       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (source_entity, rel_type, target_entity)
	);

	-- MENTIONS edges from a document/chunk to an entity.
	CREATE TABLE IF NOT EXISTS mentions (
		parent_id   TEXT NOT NULL,
		entity_name TEXT NOT NULL,
		rel_type    TEXT NOT NULL DEFAULT 'MENTIONS',
		PRIMARY KEY (parent_id, entity_name)
	);

	CREATE INDEX IF NOT EXISTS idx_mentions_entity ON mentions(entity_name);
	`
	_, err := g.db.Exec(schema)
	return err
}

// UpsertEntity inserts or refreshes an entity node. The first observed type
// wins; re-upserts with a different type do not flip it.
func (g *SQLiteGraphStore) UpsertEntity(ctx context.Context, name, entityType string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph store is closed")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("entity name is empty")
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO entities (name, entity_type, created_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, entityType, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", name, err)
	}
	return nil
}

// UpsertRelationship inserts or refreshes a typed edge, creating endpoint
// entities as needed.
func (g *SQLiteGraphStore) UpsertRelationship(ctx context.Context, rel *Relationship) error {
	if rel == nil || rel.SourceEntity == "" || rel.TargetEntity == "" || rel.Type == "" {
		return fmt.Errorf("relationship requires source, target, and type")
	}

	if err := g.UpsertEntity(ctx, rel.SourceEntity, rel.SourceType); err != nil {
		return err
	}
	if err := g.UpsertEntity(ctx, rel.TargetEntity, rel.TargetType); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph store is closed")
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO relationships (source_entity, source_type, rel_type, target_entity, target_type, confidence, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_entity, rel_type, target_entity) DO UPDATE SET
			confidence = excluded.confidence,
			context = excluded.context`,
		rel.SourceEntity, rel.SourceType, rel.Type, rel.TargetEntity, rel.TargetType, rel.Confidence, rel.Context)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

// Link records a MENTIONS edge from a parent to an entity, creating the
// entity node if needed.
func (g *SQLiteGraphStore) Link(ctx context.Context, parentID, entityName, entityType string) error {
	if err := g.UpsertEntity(ctx, entityName, entityType); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph store is closed")
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO mentions (parent_id, entity_name, rel_type) VALUES (?, ?, ?)
		ON CONFLICT(parent_id, entity_name) DO NOTHING`,
		parentID, strings.TrimSpace(entityName), MentionsRelType)
	if err != nil {
		return fmt.Errorf("link %s -> %s: %w", parentID, entityName, err)
	}
	return nil
}

// QueryByEntity returns parent ids mentioning the named entity, sorted.
func (g *SQLiteGraphStore) QueryByEntity(ctx context.Context, entityName string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows, err := g.db.QueryContext(ctx, `
		SELECT parent_id FROM mentions WHERE lower(entity_name) = lower(?) ORDER BY parent_id`,
		strings.TrimSpace(entityName))
	if err != nil {
		return nil, fmt.Errorf("query by entity: %w", err)
	}
	defer rows.Close()

	var parents []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		parents = append(parents, id)
	}
	return parents, rows.Err()
}

// Search scores parents by entity overlap with the query. The score is the
// fraction of query-matched entities a parent mentions, capped at 1.0.
func (g *SQLiteGraphStore) Search(ctx context.Context, query string, limit int) ([]*GraphResult, error) {
	matched, err := g.matchEntities(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 || limit <= 0 {
		return []*GraphResult{}, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	placeholders := strings.Repeat("?,", len(matched))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(matched))
	for _, name := range matched {
		args = append(args, name)
	}

	rows, err := g.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT parent_id, COUNT(DISTINCT entity_name) AS hits, MIN(entity_name)
		FROM mentions WHERE entity_name IN (%s)
		GROUP BY parent_id`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("graph search: %w", err)
	}
	defer rows.Close()

	var results []*GraphResult
	for rows.Next() {
		var (
			parentID, entity string
			hits             int
		)
		if err := rows.Scan(&parentID, &hits, &entity); err != nil {
			return nil, err
		}
		score := float64(hits) / float64(len(matched))
		if score > 1.0 {
			score = 1.0
		}
		results = append(results, &GraphResult{
			ParentID:      parentID,
			Score:         score,
			MatchedEntity: entity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ParentID < results[j].ParentID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// matchEntities returns stored entity names whose every word appears in
// the query, lowercased. Sorted for deterministic scoring.
func (g *SQLiteGraphStore) matchEntities(ctx context.Context, query string) ([]string, error) {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tokens[strings.Trim(tok, `.,;:!?"'()[]`)] = struct{}{}
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	g.mu.RLock()
	rows, err := g.db.QueryContext(ctx, `SELECT name FROM entities`)
	if err != nil {
		g.mu.RUnlock()
		return nil, fmt.Errorf("list entities: %w", err)
	}

	var matched []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			g.mu.RUnlock()
			return nil, err
		}
		words := strings.Fields(strings.ToLower(name))
		if len(words) == 0 {
			continue
		}
		all := true
		for _, w := range words {
			if _, ok := tokens[w]; !ok {
				all = false
				break
			}
		}
		if all {
			matched = append(matched, name)
		}
	}
	err = rows.Err()
	_ = rows.Close()
	g.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	sort.Strings(matched)
	return matched, nil
}

// DeleteParent detach-deletes a parent: its MENTIONS edges are removed,
// shared entity nodes stay for other parents. Idempotent.
func (g *SQLiteGraphStore) DeleteParent(ctx context.Context, parentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph store is closed")
	}
	if _, err := g.db.ExecContext(ctx, `DELETE FROM mentions WHERE parent_id = ?`, parentID); err != nil {
		return fmt.Errorf("delete parent %s: %w", parentID, err)
	}
	return nil
}

// ParentIDs returns every parent id with at least one edge, sorted.
func (g *SQLiteGraphStore) ParentIDs(ctx context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows, err := g.db.QueryContext(ctx, `SELECT DISTINCT parent_id FROM mentions ORDER BY parent_id`)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	defer rows.Close()

	var parents []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		parents = append(parents, id)
	}
	return parents, rows.Err()
}

// Close closes the underlying database.
func (g *SQLiteGraphStore) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}
