package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/anaya/internal/model"
)

func TestAnswerCacheDisabled(t *testing.T) {
	ctx := context.Background()
	cache := NewAnswerCache(nil, &AnswerCacheConfig{Enabled: false})

	cached, err := cache.Get(ctx, []string{"c1"}, "question")
	require.NoError(t, err)
	assert.Nil(t, cached)

	assert.NoError(t, cache.Set(ctx, []string{"c1"}, "question", &model.QueryResult{Answer: "a"}))
	assert.NoError(t, cache.InvalidateCollection(ctx, "c1"))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, stats["enabled"])
}

func TestAnswerCacheNilConfig(t *testing.T) {
	cache := NewAnswerCache(nil, nil)

	cached, err := cache.Get(context.Background(), []string{"c1"}, "question")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCacheKeyDeterministic(t *testing.T) {
	cache := NewAnswerCache(nil, &AnswerCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "anaya:answer:"})

	key1 := cache.cacheKey([]string{"c1", "c2"}, "question")
	key2 := cache.cacheKey([]string{"c1", "c2"}, "question")
	assert.Equal(t, key1, key2)
	assert.Contains(t, key1, "anaya:answer:")
}

func TestCacheKeyOrderInsensitive(t *testing.T) {
	cache := NewAnswerCache(nil, &AnswerCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "anaya:answer:"})

	// Collection order must not change the key.
	assert.Equal(t,
		cache.cacheKey([]string{"c1", "c2"}, "question"),
		cache.cacheKey([]string{"c2", "c1"}, "question"),
	)
}

func TestCacheKeyVaries(t *testing.T) {
	cache := NewAnswerCache(nil, &AnswerCacheConfig{Enabled: true, TTL: time.Hour, KeyPrefix: "anaya:answer:"})

	base := cache.cacheKey([]string{"c1"}, "question")
	assert.NotEqual(t, base, cache.cacheKey([]string{"c1"}, "another question"))
	assert.NotEqual(t, base, cache.cacheKey([]string{"c2"}, "question"))
	assert.NotEqual(t, base, cache.cacheKey([]string{"c1", "c2"}, "question"))
}

func TestCacheIndexKey(t *testing.T) {
	cache := NewAnswerCache(nil, &AnswerCacheConfig{Enabled: true, KeyPrefix: "anaya:answer:"})
	assert.Equal(t, "anaya:answer:index:c1", cache.indexKey("c1"))
}
