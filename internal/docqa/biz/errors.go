package biz

import "fmt"

// EmbeddingError 表示嵌入供应商不可达或返回了畸形响应。
type EmbeddingError struct {
	Text string
	Err  error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// RetrievalError 表示所有查询变体的检索全部失败。
type RetrievalError struct {
	Question string
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for question %q: %v", e.Question, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// SynthesisError 表示推理服务不可达或返回了空响应。
type SynthesisError struct {
	Reason string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("answer synthesis failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("answer synthesis failed: %s", e.Reason)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// IngestError 表示单个文档的摄取失败，携带文档 ID 以便批量上传时
// 定位失败文档。
type IngestError struct {
	DocumentID string
	Err        error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest failed for document %s: %v", e.DocumentID, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
