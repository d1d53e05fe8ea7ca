package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/anaya/pkg/component/milvus"
)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// EnsureCollection 创建 Milvus 集合，已存在时为 no-op。
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	schema := &milvus.CollectionSchema{
		Name:        name,
		Description: "document chunks",
		Dimension:   dimension,
		MetaFields: []milvus.MetaField{
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 128},
			{Name: "document_name", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "page", DataType: entity.FieldTypeInt64},
			{Name: "chunk_offset", DataType: entity.FieldTypeInt64},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	}
	return s.client.CreateCollection(ctx, schema)
}

// Upsert 批量写入文档块。集合已有数据时跳过，防止重复摄取产生重复块。
func (s *MilvusStore) Upsert(ctx context.Context, collection string, chunks []*Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	count, err := s.client.GetCollectionStats(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection stats: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	embeddings := make([][]float32, len(chunks))
	metadata := map[string][]any{
		"document_id":   make([]any, len(chunks)),
		"document_name": make([]any, len(chunks)),
		"page":          make([]any, len(chunks)),
		"chunk_offset":  make([]any, len(chunks)),
		"content":       make([]any, len(chunks)),
	}

	for i, chunk := range chunks {
		embeddings[i] = chunk.Embedding
		metadata["document_id"][i] = chunk.DocumentID
		metadata["document_name"][i] = chunk.DocumentName
		metadata["page"][i] = int64(chunk.Page)
		metadata["chunk_offset"][i] = int64(chunk.Offset)
		metadata["content"][i] = chunk.Content
	}

	data := &milvus.InsertData{
		Embeddings: embeddings,
		Metadata:   metadata,
	}

	ids, err := s.client.Insert(ctx, collection, data)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into milvus: %w", err)
	}

	return len(ids), nil
}

// Search 执行向量相似度搜索。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	outputFields := []string{"document_id", "document_name", "page", "chunk_offset", "content"}
	results, err := s.client.Search(ctx, collection, embedding, topK, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	searchResults := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		sr := &SearchResult{Score: r.Score}
		if v, ok := r.Metadata["document_id"].(string); ok {
			sr.DocumentID = v
		}
		if v, ok := r.Metadata["document_name"].(string); ok {
			sr.DocumentName = v
		}
		if v, ok := r.Metadata["page"].(int64); ok {
			sr.Page = int(v)
		}
		if v, ok := r.Metadata["chunk_offset"].(int64); ok {
			sr.Offset = int(v)
		}
		if v, ok := r.Metadata["content"].(string); ok {
			sr.Content = v
		}
		searchResults = append(searchResults, sr)
	}

	return searchResults, nil
}

// Drop 删除集合，集合不存在时为 no-op。
func (s *MilvusStore) Drop(ctx context.Context, collection string) error {
	return s.client.DropCollection(ctx, collection)
}

// List 返回全部集合名称。
func (s *MilvusStore) List(ctx context.Context) ([]string, error) {
	return s.client.ListCollections(ctx)
}

// Count 返回集合中的实体数量。
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)
