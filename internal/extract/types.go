// Package extract pulls named entities and typed relationships out of raw
// text. The graph index stores whatever an Extractor returns; extraction
// quality bounds graph search quality, nothing downstream compensates.
package extract

import (
	"context"

	"github.com/Aman-CERP/corpus/internal/store"
)

// Entity type labels.
const (
	TypePerson       = "person"
	TypeOrganization = "organization"
	TypeLocation     = "location"
	TypeDate         = "date"
	TypeOther        = "other"
)

// Result is one extraction pass over a text.
type Result struct {
	Entities      []store.Entity
	Relationships []store.Relationship
}

// Extractor derives entities and relationships from text. Implementations
// must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}

// dedupeEntities drops repeated names, keeping the first occurrence. Names
// are compared exactly; extractors normalize before returning.
func dedupeEntities(entities []store.Entity) []store.Entity {
	seen := make(map[string]bool, len(entities))
	out := entities[:0]
	for _, e := range entities {
		if e.Name == "" || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return out
}
