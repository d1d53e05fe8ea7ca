package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anaya/internal/docqa/store"
)

func testChunks() []*store.Chunk {
	return []*store.Chunk{
		{DocumentID: "doc1", DocumentName: "a.pdf", Page: 1, Offset: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
		{DocumentID: "doc1", DocumentName: "a.pdf", Page: 1, Offset: 1, Content: "beta", Embedding: []float32{0, 1, 0}},
		{DocumentID: "doc1", DocumentName: "a.pdf", Page: 2, Offset: 2, Content: "gamma", Embedding: []float32{0.9, 0.1, 0}},
	}
}

func TestMemoryStoreEnsureCollection(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.EnsureCollection(ctx, "c1", 3))
	// Creating an existing collection is a no-op.
	require.NoError(t, s.EnsureCollection(ctx, "c1", 3))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, names)
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c1", 3))

	written, err := s.Upsert(ctx, "c1", testChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	count, err := s.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// A second upsert into a populated collection is skipped.
	written, err = s.Upsert(ctx, "c1", testChunks())
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	count, err = s.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryStoreUpsertMissingCollection(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := s.Upsert(context.Background(), "missing", testChunks())
	assert.True(t, errors.Is(err, store.ErrCollectionNotFound))
}

func TestMemoryStoreUpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c1", 5))

	_, err := s.Upsert(ctx, "c1", testChunks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestMemoryStoreSearch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c1", 3))
	_, err := s.Upsert(ctx, "c1", testChunks())
	require.NoError(t, err)

	results, err := s.Search(ctx, "c1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Scores are sorted descending; "alpha" is the exact match.
	assert.Equal(t, "alpha", results[0].Content)
	assert.Equal(t, "gamma", results[1].Content)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Equal(t, "doc1", results[0].DocumentID)
	assert.Equal(t, 1, results[0].Page)
}

func TestMemoryStoreSearchMissingCollection(t *testing.T) {
	s := store.NewMemoryStore()

	_, err := s.Search(context.Background(), "missing", []float32{1, 0, 0}, 5)
	assert.True(t, errors.Is(err, store.ErrCollectionNotFound))
}

func TestMemoryStoreDrop(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c1", 3))
	_, err := s.Upsert(ctx, "c1", testChunks())
	require.NoError(t, err)

	require.NoError(t, s.Drop(ctx, "c1"))

	_, err = s.Search(ctx, "c1", []float32{1, 0, 0}, 5)
	assert.True(t, errors.Is(err, store.ErrCollectionNotFound))

	// Dropping an absent collection is a no-op.
	assert.NoError(t, s.Drop(ctx, "c1"))
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "zeta", 3))
	require.NoError(t, s.EnsureCollection(ctx, "alpha", 3))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestMemoryStoreUpsertCopiesChunks(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c1", 3))

	chunks := testChunks()
	_, err := s.Upsert(ctx, "c1", chunks)
	require.NoError(t, err)

	// Mutating the caller's slice must not affect stored data.
	chunks[0].Content = "mutated"

	results, err := s.Search(ctx, "c1", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].Content)
}
