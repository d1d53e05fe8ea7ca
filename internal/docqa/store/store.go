// Package store 提供文档块的向量存储抽象。
package store

import (
	"context"
	"errors"
)

// ErrCollectionNotFound 表示目标集合不存在。
var ErrCollectionNotFound = errors.New("collection not found")

// Chunk 表示带嵌入向量的文档块。
type Chunk struct {
	// DocumentID 所属文档 ID。
	DocumentID string
	// DocumentName 文档名称。
	DocumentName string
	// Page 来源页码（从 1 开始）。
	Page int
	// Offset 块在页内文本中的起始位置（以 rune 计）。
	Offset int
	// Content 文档块内容。
	Content string
	// Embedding 嵌入向量。
	Embedding []float32
}

// SearchResult 表示检索结果。
type SearchResult struct {
	// DocumentID 所属文档 ID。
	DocumentID string
	// DocumentName 文档名称。
	DocumentName string
	// Page 来源页码。
	Page int
	// Offset 块在页内文本中的起始位置。
	Offset int
	// Content 文档块内容。
	Content string
	// Score 相似度分数，越大越相似。
	Score float32
}

// VectorStore 定义向量存储接口。
// 每个已索引文档对应一个独立集合。
type VectorStore interface {
	// EnsureCollection 创建集合；若集合已存在则不做任何操作。
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert 批量写入文档块。若集合已包含数据则跳过写入并返回 0，
	// 保证同一文档重复摄取不会产生重复块。
	Upsert(ctx context.Context, collection string, chunks []*Chunk) (int, error)

	// Search 向量相似度搜索，返回按分数降序排列的最多 topK 条结果。
	// 集合不存在时返回 ErrCollectionNotFound。
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// Drop 删除集合。集合不存在时不视为错误。
	Drop(ctx context.Context, collection string) error

	// List 返回全部集合名称。
	List(ctx context.Context) ([]string, error)

	// Count 返回集合中的实体数量。
	Count(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
