// Package model provides data models for the Anaya document QA service.
package model

import (
	"time"
)

// DocumentStatus 文档生命周期状态。
type DocumentStatus string

const (
	// StatusUploaded 文档已上传，尚未开始索引。
	StatusUploaded DocumentStatus = "uploaded"
	// StatusIngesting 文档正在提取、分块和嵌入。
	StatusIngesting DocumentStatus = "ingesting"
	// StatusIndexed 文档已成功写入向量集合。
	StatusIndexed DocumentStatus = "indexed"
	// StatusFailed 文档索引失败，需要重新上传。
	StatusFailed DocumentStatus = "failed"
)

// Document represents one uploaded PDF document.
type Document struct {
	// ID is derived from the uploaded filename.
	ID string `json:"id"`
	// Name is the original filename.
	Name string `json:"name"`
	// Hash is the SHA-256 of the raw content, used to key the collection.
	Hash string `json:"hash"`
	// Collection is the vector collection holding this document's chunks.
	Collection string `json:"collection,omitempty"`
	// Status is the current lifecycle state.
	Status DocumentStatus `json:"status"`
	// ChunkCount is the number of chunks indexed for this document.
	ChunkCount int `json:"chunk_count"`
	// Error holds the failure reason when Status is failed.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChunkSource 表示答案引用的一个文档块。
type ChunkSource struct {
	// DocumentID 所属文档 ID。
	DocumentID string `json:"document_id"`
	// DocumentName 文档名称。
	DocumentName string `json:"document_name"`
	// Page 块所在页码。
	Page int `json:"page"`
	// Offset 块在文档内的序号。
	Offset int `json:"offset"`
	// Content 块内容。
	Content string `json:"content"`
	// Score 相似度分数。
	Score float32 `json:"score"`
}

// QueryResult 表示一次问答的结果。
type QueryResult struct {
	// Answer 模型生成的答案。
	Answer string `json:"answer"`
	// Sources 答案所依据的文档块。
	Sources []ChunkSource `json:"sources"`
	// Expansions 本次检索使用的查询变体（含原始问题）。
	Expansions []string `json:"expansions,omitempty"`
}
