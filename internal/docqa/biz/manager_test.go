package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anaya/internal/docqa/store"
	"github.com/kart-io/anaya/internal/model"
	"github.com/kart-io/anaya/internal/pkg/extract"
)

func newTestManager(memStore store.VectorStore, embedder *fakeEmbedder) *DocumentManager {
	return NewDocumentManager(memStore, embedder, nil, &ManagerConfig{
		ChunkMaxSize: 50,
		ChunkOverlap: 5,
	})
}

func TestManagerIngestSuccess(t *testing.T) {
	swapExtract(t, extractUploadText)
	memStore := store.NewMemoryStore()
	manager := newTestManager(memStore, newWordEmbedder())

	doc, replaced, err := manager.GetOrCreateCollection(context.Background(), &Upload{
		Name: "sky.pdf",
		Data: []byte("The sky is blue."),
	})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Empty(t, replaced)

	assert.Equal(t, model.StatusIndexed, doc.Status)
	assert.NotEmpty(t, doc.Collection)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Empty(t, doc.Error)

	count, err := memStore.Count(context.Background(), doc.Collection)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestManagerReusesIndexedCollection(t *testing.T) {
	swapExtract(t, extractUploadText)
	embedder := newWordEmbedder()
	manager := newTestManager(store.NewMemoryStore(), embedder)

	upload := &Upload{Name: "sky.pdf", Data: []byte("The sky is blue.")}
	first, _, err := manager.GetOrCreateCollection(context.Background(), upload)
	require.NoError(t, err)

	callsAfterFirst := embedder.callCount()

	second, _, err := manager.GetOrCreateCollection(context.Background(), upload)
	require.NoError(t, err)

	// Same name and content reuses the collection without re-embedding.
	assert.Equal(t, first.Collection, second.Collection)
	assert.Equal(t, callsAfterFirst, embedder.callCount())
}

func TestManagerContentChangeGetsNewCollection(t *testing.T) {
	swapExtract(t, extractUploadText)
	memStore := store.NewMemoryStore()
	manager := newTestManager(memStore, newWordEmbedder())

	first, _, err := manager.GetOrCreateCollection(context.Background(), &Upload{
		Name: "sky.pdf",
		Data: []byte("The sky is blue."),
	})
	require.NoError(t, err)

	second, replaced, err := manager.GetOrCreateCollection(context.Background(), &Upload{
		Name: "sky.pdf",
		Data: []byte("The sky is gray today."),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.Hash, second.Hash)
	assert.NotEqual(t, first.Collection, second.Collection)
	assert.Equal(t, first.Collection, replaced)

	// The document record now reflects the newer content.
	current, ok := manager.GetDocument(second.ID)
	require.True(t, ok)
	assert.Equal(t, second.Collection, current.Collection)

	// The superseded collection is dropped; the store tracks exactly
	// one collection per document.
	collections, err := memStore.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{second.Collection}, collections)
}

func TestManagerFailedDocumentHasNoCollection(t *testing.T) {
	swapExtract(t, func([]byte) ([]extract.Segment, error) {
		return nil, &extract.ExtractionError{Reason: "unreadable document"}
	})
	memStore := store.NewMemoryStore()
	manager := newTestManager(memStore, newWordEmbedder())

	doc, _, err := manager.GetOrCreateCollection(context.Background(), &Upload{
		Name: "broken.pdf",
		Data: []byte("garbage"),
	})
	require.Error(t, err)

	var ingestErr *IngestError
	require.True(t, errors.As(err, &ingestErr))
	var extractErr *extract.ExtractionError
	assert.True(t, errors.As(err, &extractErr))

	require.NotNil(t, doc)
	assert.Equal(t, model.StatusFailed, doc.Status)
	assert.Empty(t, doc.Collection)
	assert.NotEmpty(t, doc.Error)

	collections, listErr := memStore.List(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, collections)
	assert.Empty(t, manager.IndexedCollections())
}

func TestManagerEmbeddingFailure(t *testing.T) {
	swapExtract(t, extractUploadText)
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) {
		return nil, fmt.Errorf("embedding backend down")
	}}
	manager := newTestManager(store.NewMemoryStore(), embedder)

	doc, _, err := manager.GetOrCreateCollection(context.Background(), &Upload{
		Name: "sky.pdf",
		Data: []byte("The sky is blue."),
	})
	require.Error(t, err)

	var embedErr *EmbeddingError
	assert.True(t, errors.As(err, &embedErr))
	assert.Equal(t, model.StatusFailed, doc.Status)
	assert.Empty(t, doc.Collection)
}

func TestManagerRejectsEmptyName(t *testing.T) {
	manager := newTestManager(store.NewMemoryStore(), newWordEmbedder())

	_, _, err := manager.GetOrCreateCollection(context.Background(), &Upload{Name: ""})
	assert.Error(t, err)

	_, _, err = manager.GetOrCreateCollection(context.Background(), nil)
	assert.Error(t, err)
}

func TestManagerDeleteDocument(t *testing.T) {
	swapExtract(t, extractUploadText)
	memStore := store.NewMemoryStore()
	manager := newTestManager(memStore, newWordEmbedder())
	ctx := context.Background()

	docA, _, err := manager.GetOrCreateCollection(ctx, &Upload{Name: "a.pdf", Data: []byte("document alpha content here")})
	require.NoError(t, err)
	docB, _, err := manager.GetOrCreateCollection(ctx, &Upload{Name: "b.pdf", Data: []byte("document beta content here")})
	require.NoError(t, err)

	collection, found, err := manager.DeleteDocument(ctx, docA.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, docA.Collection, collection)

	_, ok := manager.GetDocument(docA.ID)
	assert.False(t, ok)

	// The other document's collection is untouched.
	count, err := memStore.Count(ctx, docB.Collection)
	require.NoError(t, err)
	assert.Greater(t, count, int64(0))
	assert.Equal(t, []string{docB.Collection}, manager.IndexedCollections())
}

func TestManagerDeleteUnknownDocument(t *testing.T) {
	manager := newTestManager(store.NewMemoryStore(), newWordEmbedder())

	collection, found, err := manager.DeleteDocument(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, collection)
}

func TestManagerIngestBatch(t *testing.T) {
	swapExtract(t, func(data []byte) ([]extract.Segment, error) {
		if string(data) == "bad" {
			return nil, &extract.ExtractionError{Reason: "unreadable document"}
		}
		return extractUploadText(data)
	})
	manager := newTestManager(store.NewMemoryStore(), newWordEmbedder())

	uploads := []*Upload{
		{Name: "good.pdf", Data: []byte("perfectly fine document content")},
		{Name: "bad.pdf", Data: []byte("bad")},
	}
	docs, _, errs := manager.IngestBatch(context.Background(), uploads)
	require.Len(t, docs, 2)
	require.Len(t, errs, 2)

	// One failed document does not affect the other.
	assert.NoError(t, errs[0])
	assert.Equal(t, model.StatusIndexed, docs[0].Status)
	assert.Error(t, errs[1])
	assert.Equal(t, model.StatusFailed, docs[1].Status)
}

func TestManagerRepeatedReuploadsLeaveSingleCollection(t *testing.T) {
	swapExtract(t, extractUploadText)
	memStore := store.NewMemoryStore()
	manager := newTestManager(memStore, newWordEmbedder())
	ctx := context.Background()

	for i, content := range []string{
		"first revision of the document",
		"second revision of the document",
		"third revision of the document",
	} {
		doc, _, err := manager.GetOrCreateCollection(ctx, &Upload{
			Name: "report.pdf",
			Data: []byte(content),
		})
		require.NoError(t, err, "revision %d", i+1)
		require.Equal(t, model.StatusIndexed, doc.Status)
	}

	collections, err := memStore.List(ctx)
	require.NoError(t, err)
	assert.Len(t, collections, 1)
	assert.Len(t, manager.ListDocuments(), 1)
}

func TestManagerReturnsDocumentCopies(t *testing.T) {
	swapExtract(t, extractUploadText)
	manager := newTestManager(store.NewMemoryStore(), newWordEmbedder())
	ctx := context.Background()

	uploaded, _, err := manager.GetOrCreateCollection(ctx, &Upload{
		Name: "sky.pdf",
		Data: []byte("The sky is blue."),
	})
	require.NoError(t, err)

	// Mutating a returned document must not leak into manager state.
	uploaded.Status = model.StatusFailed
	uploaded.Error = "mutated by caller"

	fetched, ok := manager.GetDocument(uploaded.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusIndexed, fetched.Status)
	assert.Empty(t, fetched.Error)

	listed := manager.ListDocuments()
	require.Len(t, listed, 1)
	listed[0].Status = model.StatusIngesting

	again, ok := manager.GetDocument(uploaded.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusIndexed, again.Status)
}

func TestManagerListDocumentsSorted(t *testing.T) {
	swapExtract(t, extractUploadText)
	manager := newTestManager(store.NewMemoryStore(), newWordEmbedder())
	ctx := context.Background()

	_, _, err := manager.GetOrCreateCollection(ctx, &Upload{Name: "first.pdf", Data: []byte("first document content")})
	require.NoError(t, err)
	_, _, err = manager.GetOrCreateCollection(ctx, &Upload{Name: "second.pdf", Data: []byte("second document content")})
	require.NoError(t, err)

	docs := manager.ListDocuments()
	require.Len(t, docs, 2)
	assert.Equal(t, "first.pdf", docs[0].Name)
	assert.Equal(t, "second.pdf", docs[1].Name)
}
