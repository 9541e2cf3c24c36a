package index

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// ReconcileResult reports one reconciliation pass.
type ReconcileResult struct {
	// Valid is the number of derived-index ids whose source record exists.
	Valid int

	// OrphanedIDs are ids that were found in a derived index without a
	// source record, and removed.
	OrphanedIDs []string
}

// Reconcile enumerates every id held by the lexical, vector, and graph
// indexes, probes the source store for each, and removes the orphans.
//
// The probe is read-only, so reconciliation is safe under concurrent
// traffic; removal is idempotent, so overlapping runs are safe too. A record
// whose parent exists is never touched.
func (c *Coordinator) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	start := time.Now()

	ids := make(map[string]bool)
	for _, id := range c.lexical.AllIDs() {
		ids[id] = true
	}
	for _, id := range c.vector.AllIDs() {
		ids[id] = true
	}
	graphIDs, err := c.graph.ParentIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range graphIDs {
		ids[id] = true
	}

	result := &ReconcileResult{}
	for id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		exists, err := c.docs.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Valid++
			continue
		}
		c.removeOrphan(ctx, id)
		result.OrphanedIDs = append(result.OrphanedIDs, id)
	}
	sort.Strings(result.OrphanedIDs)

	slog.Info("reconciliation completed",
		slog.Int("valid", result.Valid),
		slog.Int("orphans", len(result.OrphanedIDs)),
		slog.Duration("elapsed", time.Since(start)))

	return result, nil
}

// removeOrphan deletes one id from all three derived indexes. Failures are
// logged and left for the next pass.
func (c *Coordinator) removeOrphan(ctx context.Context, id string) {
	if err := c.lexical.Remove(ctx, id); err != nil {
		slog.Warn("orphan removal failed in lexical index",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
	if err := c.vector.Delete(ctx, []string{id}); err != nil {
		slog.Warn("orphan removal failed in vector index",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
	if err := c.graph.DeleteParent(ctx, id); err != nil {
		slog.Warn("orphan removal failed in graph index",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
}
