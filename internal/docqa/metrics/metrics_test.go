package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anaya/internal/docqa/metrics"
)

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, metrics.Get(), metrics.Get())
}

func TestRecordQuery(t *testing.T) {
	m := metrics.Get()
	m.Reset()

	m.RecordQuery(true, nil)
	m.RecordQuery(false, nil)
	m.RecordQuery(false, errors.New("boom"))

	stats := m.Stats()
	queries, ok := stats["queries"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, uint64(3), queries["total"])
	assert.Equal(t, uint64(1), queries["cache_hits"])
	assert.Equal(t, uint64(1), queries["cache_misses"])
	assert.Equal(t, uint64(1), queries["errors"])
	assert.InDelta(t, 0.5, queries["cache_hit_rate"], 1e-9)
}

func TestRecordRetrievalAndSynthesis(t *testing.T) {
	m := metrics.Get()
	m.Reset()

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(300*time.Millisecond, nil)
	m.RecordRetrieval(0, errors.New("boom"))
	m.RecordSynthesis(200*time.Millisecond, nil)

	stats := m.Stats()
	retrieval, ok := stats["retrieval"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, uint64(3), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["errors"])
	assert.InDelta(t, 0.4, retrieval["total_duration_secs"], 1e-9)

	synthesis, ok := stats["synthesis"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, uint64(1), synthesis["total"])
	assert.InDelta(t, 0.2, synthesis["avg_duration_secs"], 1e-9)
}

func TestRecordIngest(t *testing.T) {
	m := metrics.Get()
	m.Reset()

	m.RecordIngest(1, 12, nil)
	m.RecordIngest(1, 8, nil)
	m.RecordIngest(0, 0, errors.New("boom"))

	stats := m.Stats()
	ingest, ok := stats["ingest"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, uint64(2), ingest["documents_indexed"])
	assert.Equal(t, uint64(20), ingest["chunks_indexed"])
	assert.Equal(t, uint64(1), ingest["errors"])
}

func TestReset(t *testing.T) {
	m := metrics.Get()
	m.RecordQuery(false, nil)
	m.RecordIngest(1, 5, nil)
	m.Reset()

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	ingest := stats["ingest"].(map[string]interface{})
	assert.Equal(t, uint64(0), queries["total"])
	assert.Equal(t, uint64(0), ingest["documents_indexed"])
}
