package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locallore/lore/internal/models"
	"github.com/locallore/lore/pkg/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLite(store.SQLiteConfig{
		Path:      filepath.Join(t.TempDir(), "lore.db"),
		VectorDim: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func testChunks(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Index: i, Text: text, Size: len(text)}
	}
	return chunks
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	_, err := s.SaveDocument(ctx, "notes.txt", testChunks("alpha", "beta", "gamma"), vectors)
	require.NoError(t, err)

	// searching with an exact stored vector returns its chunk first at
	// distance ~0
	results, err := s.Search(ctx, []float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "beta", results[0].Text)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Equal(t, "notes.txt", results[0].DocumentLabel)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestSQLiteStore_SearchMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vectors := [][]float32{
		{1, 1, 1},
		{2, 2, 2},
		{5, 5, 5},
		{0.5, 0.5, 0.5},
	}
	_, err := s.SaveDocument(ctx, "doc", testChunks("a", "b", "c", "d"), vectors)
	require.NoError(t, err)

	results, err := s.Search(ctx, []float32{0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}
	assert.Equal(t, "d", results[0].Text)
}

func TestSQLiteStore_TieBreakKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// two identical vectors: equal distance, insertion order wins
	vectors := [][]float32{
		{1, 0, 0},
		{1, 0, 0},
	}
	_, err := s.SaveDocument(ctx, "doc", testChunks("first", "second"), vectors)
	require.NoError(t, err)

	results, err := s.Search(ctx, []float32{0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Text)
	assert.Equal(t, "second", results[1].Text)
}

func TestSQLiteStore_SearchLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	_, err := s.SaveDocument(ctx, "doc", testChunks("a", "b", "c"), vectors)
	require.NoError(t, err)

	results, err := s.Search(ctx, []float32{0, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search(ctx, []float32{0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteStore_CountMismatchRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveDocument(ctx, "doc", testChunks("a", "b"), [][]float32{{1, 0, 0}})
	require.ErrorIs(t, err, store.ErrCountMismatch)

	// nothing persisted
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{}, stats)
}

func TestSQLiteStore_DimensionMismatchRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveDocument(ctx, "doc", testChunks("a"), [][]float32{{1, 0}})
	require.Error(t, err)

	_, err = s.Search(ctx, []float32{1, 0}, 5)
	require.Error(t, err)
}

func TestSQLiteStore_NotInitialized(t *testing.T) {
	s, err := store.NewSQLite(store.SQLiteConfig{
		Path:      filepath.Join(t.TempDir(), "lore.db"),
		VectorDim: 3,
	})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	_, err = s.Search(ctx, []float32{0, 0, 0}, 1)
	assert.ErrorIs(t, err, store.ErrNotInitialized)

	_, err = s.SaveDocument(ctx, "doc", testChunks("a"), [][]float32{{1, 0, 0}})
	assert.ErrorIs(t, err, store.ErrNotInitialized)

	_, err = s.Stats(ctx)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestSQLiteStore_InitializeIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Initialize(context.Background()))
}

func TestSQLiteStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveDocument(ctx, "one", testChunks("a", "b"), [][]float32{{1, 0, 0}, {0, 1, 0}})
	require.NoError(t, err)
	_, err = s.SaveDocument(ctx, "two", testChunks("c"), [][]float32{{0, 0, 1}})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Documents: 2, Chunks: 3, Vectors: 3}, stats)
}

func TestSQLiteStore_ReingestReplacesChunkSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveDocument(ctx, "doc", testChunks("old a", "old b"),
		[][]float32{{1, 0, 0}, {0, 1, 0}})
	require.NoError(t, err)

	_, err = s.SaveDocument(ctx, "doc", testChunks("new"), [][]float32{{0, 0, 1}})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Documents: 1, Chunks: 1, Vectors: 1}, stats)

	results, err := s.Search(ctx, []float32{0, 0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Text)
}

func TestSQLiteStore_ReingestLeavesOtherDocumentsAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveDocument(ctx, "keep", testChunks("kept"), [][]float32{{1, 0, 0}})
	require.NoError(t, err)
	_, err = s.SaveDocument(ctx, "doc", testChunks("old a", "old b"),
		[][]float32{{0, 1, 0}, {0, 0, 1}})
	require.NoError(t, err)

	_, err = s.SaveDocument(ctx, "doc", testChunks("new"), [][]float32{{0, 1, 1}})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Documents: 2, Chunks: 2, Vectors: 2}, stats)

	results, err := s.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Text)
	assert.Equal(t, "keep", results[0].DocumentLabel)
}
