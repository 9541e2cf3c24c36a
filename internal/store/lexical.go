package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// titleRepetition is how many times a document's title is folded into its
// searchable text. Repetition raises the title terms' frequency so title
// hits outrank body hits under BM25.
const titleRepetition = 3

// lexicalSnapshot is one immutable generation of the index. Readers query
// the current snapshot under the read lock; Rebuild swaps in a fresh one
// under the write lock and closes the old generation only once the swap has
// excluded every reader, so no reader ever observes a half-built or closed
// index.
type lexicalSnapshot struct {
	idx bleve.Index
	ids map[string]struct{}
}

// BleveLexicalIndex implements LexicalIndex over a memory-only Bleve index.
// Mutation is whole-corpus rebuild plus single-id removal on the live
// snapshot; there is no incremental add.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	snap   *lexicalSnapshot
	closed bool
}

// Verify interface implementation at compile time
var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// lexicalEntry is the shape handed to Bleve.
type lexicalEntry struct {
	Text string `json:"text"`
}

func lexicalMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = "standard"
	return m
}

// NewBleveLexicalIndex creates an empty lexical index.
func NewBleveLexicalIndex() (*BleveLexicalIndex, error) {
	snap, err := emptySnapshot()
	if err != nil {
		return nil, err
	}
	return &BleveLexicalIndex{snap: snap}, nil
}

func emptySnapshot() (*lexicalSnapshot, error) {
	idx, err := bleve.NewMemOnly(lexicalMapping())
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}
	return &lexicalSnapshot{idx: idx, ids: make(map[string]struct{})}, nil
}

// searchableText folds the title into the body with repetition weight.
func searchableText(title, text string) string {
	if title == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(title)*titleRepetition + titleRepetition + len(text))
	for i := 0; i < titleRepetition; i++ {
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString(text)
	return b.String()
}

// Rebuild constructs a fresh index from docs and atomically swaps it in.
// The previous snapshot is closed after the swap.
func (l *BleveLexicalIndex) Rebuild(ctx context.Context, docs []*LexicalDocument) error {
	snap, err := emptySnapshot()
	if err != nil {
		return err
	}

	batch := snap.idx.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			_ = snap.idx.Close()
			return err
		}
		if err := batch.Index(d.ID, lexicalEntry{Text: searchableText(d.Title, d.Text)}); err != nil {
			_ = snap.idx.Close()
			return fmt.Errorf("index %s: %w", d.ID, err)
		}
		snap.ids[d.ID] = struct{}{}
	}
	if err := snap.idx.Batch(batch); err != nil {
		_ = snap.idx.Close()
		return fmt.Errorf("apply batch: %w", err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = snap.idx.Close()
		return fmt.Errorf("lexical index is closed")
	}
	old := l.snap
	l.snap = snap
	l.mu.Unlock()

	if old != nil {
		_ = old.idx.Close()
	}
	return nil
}

// Search returns up to limit keyword hits with scores normalized to [0,1]
// against the top hit. The read lock is held for the whole query so a
// concurrent Rebuild cannot close the snapshot mid-search.
func (l *BleveLexicalIndex) Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []*LexicalResult{}, nil
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := l.snap.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]*LexicalResult, 0, len(res.Hits))
	maxScore := res.MaxScore
	for _, hit := range res.Hits {
		score := hit.Score
		if maxScore > 0 {
			score = hit.Score / maxScore
		}
		results = append(results, &LexicalResult{ID: hit.ID, Score: score})
	}
	return results, nil
}

// Remove deletes one id from the live snapshot.
func (l *BleveLexicalIndex) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}
	if _, ok := l.snap.ids[id]; !ok {
		return nil
	}
	if err := l.snap.idx.Delete(id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	delete(l.snap.ids, id)
	return nil
}

// AllIDs returns every indexed id, sorted for deterministic iteration.
func (l *BleveLexicalIndex) AllIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.snap.ids))
	for id := range l.snap.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of indexed entries.
func (l *BleveLexicalIndex) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.snap.ids)
}

// Close releases the live snapshot.
func (l *BleveLexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.snap.idx.Close()
}
