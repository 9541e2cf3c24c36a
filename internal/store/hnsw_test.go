package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVectorStore(t *testing.T, dims int) *HNSWVectorStore {
	t.Helper()
	s, err := NewHNSWVectorStore(DefaultVectorStoreConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSW_AddAndSearch(t *testing.T) {
	s := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"x-axis", "y-axis", "diag"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.7, 0.7, 0},
		}))

	results, err := s.Search(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x-axis", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0))
		assert.LessOrEqual(t, r.Score, float32(1))
	}
}

func TestHNSW_ExactMatchScoresNearOne(t *testing.T) {
	s := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"v"}, [][]float32{{0.2, 0.5, 0.8}}))

	results, err := s.Search(ctx, []float32{0.2, 0.5, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSW_AddReplacesExistingID(t *testing.T) {
	s := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"doc"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, s.Add(ctx, []string{"doc"}, [][]float32{{0, 1, 0}}))

	assert.Equal(t, 1, s.Count(), "replacement must not grow the live set")

	results, err := s.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5, "search finds the new vector")
}

func TestHNSW_DeleteExcludesFromSearch(t *testing.T) {
	s := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"gone", "stays"},
		[][]float32{{1, 0, 0}, {0, 1, 0}}))

	require.NoError(t, s.Delete(ctx, []string{"gone"}))

	assert.False(t, s.Contains("gone"))
	assert.True(t, s.Contains("stays"))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1, "deleted vectors never surface")
	assert.Equal(t, "stays", results[0].ID)

	// Deleting unknown ids is a no-op.
	require.NoError(t, s.Delete(ctx, []string{"never-added"}))
}

func TestHNSW_AllIDs(t *testing.T) {
	s := newVectorStore(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))

	ids := s.AllIDs()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestHNSW_DimensionMismatch(t *testing.T) {
	s := newVectorStore(t, 3)
	ctx := context.Background()

	err := s.Add(ctx, []string{"bad"}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestHNSW_EmptySearch(t *testing.T) {
	s := newVectorStore(t, 2)

	results, err := s.Search(context.Background(), []float32{1, 0}, 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSW_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.gob")

	src := newVectorStore(t, 3)
	require.NoError(t, src.Add(ctx,
		[]string{"one", "two"},
		[][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, src.Save(path))

	dst := newVectorStore(t, 3)
	require.NoError(t, dst.Load(path))

	assert.Equal(t, 2, dst.Count())
	assert.True(t, dst.Contains("one"))
	assert.True(t, dst.Contains("two"))

	results, err := dst.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "one", results[0].ID)
}

func TestHNSW_LoadRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.gob")

	src := newVectorStore(t, 3)
	require.NoError(t, src.Add(ctx, []string{"v"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, src.Save(path))

	dst := newVectorStore(t, 4)
	err := dst.Load(path)
	assert.ErrorContains(t, err, "dimension")
}

func TestNewHNSWVectorStore_InvalidDimensions(t *testing.T) {
	_, err := NewHNSWVectorStore(DefaultVectorStoreConfig(0))
	assert.Error(t, err)
}
