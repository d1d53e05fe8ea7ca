package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/anaya/internal/pkg/textutil"
)

// MemoryStore 实现基于内存的向量存储，用于测试与本地开发。
// 相似度使用余弦相似度计算。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimension int
	chunks    []*Chunk
}

// NewMemoryStore 创建内存存储实例。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
	}
}

// EnsureCollection 创建集合，已存在时为 no-op。
func (s *MemoryStore) EnsureCollection(_ context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return nil
	}
	s.collections[name] = &memCollection{dimension: dimension}
	return nil
}

// Upsert 批量写入文档块。集合已有数据时跳过并返回 0。
func (s *MemoryStore) Upsert(_ context.Context, collection string, chunks []*Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if len(coll.chunks) > 0 {
		return 0, nil
	}

	for _, chunk := range chunks {
		if coll.dimension > 0 && len(chunk.Embedding) != coll.dimension {
			return 0, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", coll.dimension, len(chunk.Embedding))
		}
	}

	copied := make([]*Chunk, len(chunks))
	for i, chunk := range chunks {
		c := *chunk
		copied[i] = &c
	}
	coll.chunks = copied
	return len(copied), nil
}

// Search 余弦相似度搜索，返回按分数降序排列的最多 topK 条结果。
func (s *MemoryStore) Search(_ context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	results := make([]*SearchResult, 0, len(coll.chunks))
	for _, chunk := range coll.chunks {
		score := textutil.CosineSimilarity(embedding, chunk.Embedding)
		results = append(results, &SearchResult{
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			Page:         chunk.Page,
			Offset:       chunk.Offset,
			Content:      chunk.Content,
			Score:        float32(score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Drop 删除集合，集合不存在时为 no-op。
func (s *MemoryStore) Drop(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return nil
}

// List 返回全部集合名称。
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count 返回集合中的实体数量。
func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return int64(len(coll.chunks)), nil
}

// Close 关闭存储（no-op）。
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

// 确保 MemoryStore 实现了 VectorStore 接口。
var _ VectorStore = (*MemoryStore)(nil)
