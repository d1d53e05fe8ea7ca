package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anaya/internal/docqa/store"
)

func seedCollection(t *testing.T, s store.VectorStore, name string, chunks []*store.Chunk) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, name, len(chunks[0].Embedding)))
	_, err := s.Upsert(ctx, name, chunks)
	require.NoError(t, err)
}

func TestRetrieveEmptyCollections(t *testing.T) {
	embedder := newWordEmbedder()
	expander := NewExpander(failingChat(), nil)
	retriever := NewRetriever(store.NewMemoryStore(), embedder, expander, nil)

	contextSet, err := retriever.Retrieve(context.Background(), "any question", nil)
	require.NoError(t, err)
	require.NotNil(t, contextSet)
	assert.True(t, contextSet.Empty())
	assert.Equal(t, []string{"any question"}, contextSet.Expansions)
}

func TestRetrieveDedupesByMaxScore(t *testing.T) {
	memStore := store.NewMemoryStore()
	seedCollection(t, memStore, "c1", []*store.Chunk{
		{DocumentID: "doc1", DocumentName: "a.pdf", Page: 1, Offset: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
		{DocumentID: "doc1", DocumentName: "a.pdf", Page: 1, Offset: 1, Content: "beta", Embedding: []float32{0.6, 0.8, 0}},
	})

	embedder := &fakeEmbedder{fn: func(text string) ([]float32, error) {
		if text == "original question" {
			return []float32{1, 0, 0}, nil
		}
		return []float32{0, 1, 0}, nil
	}}
	chat := &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "rephrased question variant", nil
	}}
	retriever := NewRetriever(memStore, embedder, NewExpander(chat, &ExpanderConfig{Expansions: 1}), &RetrieverConfig{KPerQuery: 5})

	contextSet, err := retriever.Retrieve(context.Background(), "original question", []string{"c1"})
	require.NoError(t, err)
	require.Len(t, contextSet.Results, 2)

	// Each chunk appears once with the best score across variants.
	assert.Equal(t, "alpha", contextSet.Results[0].Content)
	assert.InDelta(t, 1.0, float64(contextSet.Results[0].Score), 1e-6)
	assert.Equal(t, "beta", contextSet.Results[1].Content)
	assert.InDelta(t, 0.8, float64(contextSet.Results[1].Score), 1e-6)
}

func TestRetrieveAllEmbeddingsFail(t *testing.T) {
	memStore := store.NewMemoryStore()
	seedCollection(t, memStore, "c1", []*store.Chunk{
		{DocumentID: "doc1", Offset: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
	})

	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) {
		return nil, fmt.Errorf("embedding backend down")
	}}
	retriever := NewRetriever(memStore, embedder, NewExpander(failingChat(), nil), nil)

	_, err := retriever.Retrieve(context.Background(), "question", []string{"c1"})
	require.Error(t, err)

	var retrievalErr *RetrievalError
	require.True(t, errors.As(err, &retrievalErr))
	var embedErr *EmbeddingError
	assert.True(t, errors.As(err, &embedErr))
}

func TestRetrieveAllSearchesFail(t *testing.T) {
	embedder := newWordEmbedder()
	retriever := NewRetriever(store.NewMemoryStore(), embedder, NewExpander(failingChat(), nil), nil)

	_, err := retriever.Retrieve(context.Background(), "question", []string{"missing"})
	require.Error(t, err)

	var retrievalErr *RetrievalError
	require.True(t, errors.As(err, &retrievalErr))
	assert.True(t, errors.Is(err, store.ErrCollectionNotFound))
}

func TestRetrievePartialFailureTolerated(t *testing.T) {
	memStore := store.NewMemoryStore()
	seedCollection(t, memStore, "c1", []*store.Chunk{
		{DocumentID: "doc1", DocumentName: "a.pdf", Page: 1, Offset: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
	})

	// The expanded variant fails to embed, the original question succeeds.
	embedder := &fakeEmbedder{fn: func(text string) ([]float32, error) {
		if text != "original question" {
			return nil, fmt.Errorf("embedding backend down")
		}
		return []float32{1, 0, 0}, nil
	}}
	chat := &fakeChat{generateFn: func(_, _ string) (string, error) {
		return "rephrased question variant", nil
	}}
	retriever := NewRetriever(memStore, embedder, NewExpander(chat, &ExpanderConfig{Expansions: 1}), nil)

	contextSet, err := retriever.Retrieve(context.Background(), "original question", []string{"c1"})
	require.NoError(t, err)
	require.Len(t, contextSet.Results, 1)
	assert.Equal(t, "alpha", contextSet.Results[0].Content)
}

func TestRetrieveMultipleCollections(t *testing.T) {
	memStore := store.NewMemoryStore()
	seedCollection(t, memStore, "c1", []*store.Chunk{
		{DocumentID: "doc1", DocumentName: "a.pdf", Page: 1, Offset: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
	})
	seedCollection(t, memStore, "c2", []*store.Chunk{
		{DocumentID: "doc2", DocumentName: "b.pdf", Page: 1, Offset: 0, Content: "beta", Embedding: []float32{0.9, 0.1, 0}},
	})

	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
	retriever := NewRetriever(memStore, embedder, NewExpander(failingChat(), nil), nil)

	contextSet, err := retriever.Retrieve(context.Background(), "question", []string{"c1", "c2"})
	require.NoError(t, err)
	require.Len(t, contextSet.Results, 2)
	assert.Equal(t, "doc1", contextSet.Results[0].DocumentID)
	assert.Equal(t, "doc2", contextSet.Results[1].DocumentID)
}
