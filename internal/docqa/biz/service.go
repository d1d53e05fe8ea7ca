// Package biz provides business logic for the document QA service.
package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/anaya/internal/docqa/metrics"
	"github.com/kart-io/anaya/internal/model"
	"github.com/kart-io/anaya/pkg/llm"
)

// Service 文档问答服务编排层：上传走 文档管理器，提问走
// 缓存 → 多查询检索 → 答案生成 的读路径。
type Service struct {
	manager   *DocumentManager
	retriever *Retriever
	generator *Generator
	cache     *AnswerCache

	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
}

// NewService 创建服务实例。
func NewService(
	manager *DocumentManager,
	retriever *Retriever,
	generator *Generator,
	cache *AnswerCache,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
) *Service {
	return &Service{
		manager:       manager,
		retriever:     retriever,
		generator:     generator,
		cache:         cache,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
	}
}

// UploadDocuments 批量摄取上传的文档。单个文档失败不影响其余文档。
// 内容变化的重新上传会替换掉旧集合，引用旧集合的缓存答案一并失效。
func (s *Service) UploadDocuments(ctx context.Context, uploads []*Upload) ([]*model.Document, []error) {
	docs, replaced, errs := s.manager.IngestBatch(ctx, uploads)

	for _, collection := range replaced {
		if collection == "" {
			continue
		}
		if err := s.cache.InvalidateCollection(ctx, collection); err != nil {
			logger.Warnw("failed to invalidate answer cache", "collection", collection, "error", err.Error())
		}
	}

	for i, doc := range docs {
		if errs[i] != nil {
			metrics.Get().RecordIngest(0, 0, errs[i])
			continue
		}
		if doc != nil {
			metrics.Get().RecordIngest(1, doc.ChunkCount, nil)
		}
	}
	return docs, errs
}

// Query 回答一个问题。没有已索引文档时返回提示上传的固定答案；
// 检索结果为空时返回未找到的固定答案，两种情况都不算错误。
func (s *Service) Query(ctx context.Context, question string) (*model.QueryResult, error) {
	collections := s.manager.IndexedCollections()
	if len(collections) == 0 {
		return &model.QueryResult{
			Answer:  NoDocumentsAnswer,
			Sources: []model.ChunkSource{},
		}, nil
	}

	if cached, err := s.cache.Get(ctx, collections, question); err == nil && cached != nil {
		metrics.Get().RecordQuery(true, nil)
		return cached, nil
	}

	// 检索期间持集合读锁，阻止并发删除
	unlock := s.manager.RLockCollections(collections)
	retrievalStart := time.Now()
	contextSet, err := s.retriever.Retrieve(ctx, question, collections)
	unlock()
	metrics.Get().RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		metrics.Get().RecordQuery(false, err)
		return nil, err
	}

	synthesisStart := time.Now()
	answer, err := s.generator.GenerateAnswer(ctx, question, contextSet.Results)
	metrics.Get().RecordSynthesis(time.Since(synthesisStart), err)
	if err != nil {
		metrics.Get().RecordQuery(false, err)
		return nil, err
	}

	sources := make([]model.ChunkSource, len(contextSet.Results))
	for i, res := range contextSet.Results {
		sources[i] = model.ChunkSource{
			DocumentID:   res.DocumentID,
			DocumentName: res.DocumentName,
			Page:         res.Page,
			Offset:       res.Offset,
			Content:      res.Content,
			Score:        res.Score,
		}
	}

	result := &model.QueryResult{
		Answer:     answer,
		Sources:    sources,
		Expansions: contextSet.Expansions,
	}

	if !contextSet.Empty() {
		if err := s.cache.Set(ctx, collections, question, result); err != nil {
			logger.Warnw("failed to cache answer", "error", err.Error())
		}
	}

	metrics.Get().RecordQuery(false, nil)
	return result, nil
}

// DeleteDocument 删除文档及其集合，并使相关答案缓存失效。
// 返回文档是否存在。
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	collection, found, err := s.manager.DeleteDocument(ctx, documentID)
	if err != nil {
		return found, err
	}
	if !found {
		return false, nil
	}

	if collection != "" {
		if err := s.cache.InvalidateCollection(ctx, collection); err != nil {
			logger.Warnw("failed to invalidate answer cache", "collection", collection, "error", err.Error())
		}
	}
	return true, nil
}

// GetDocument 返回指定文档。
func (s *Service) GetDocument(documentID string) (*model.Document, bool) {
	return s.manager.GetDocument(documentID)
}

// ListDocuments 返回全部文档。
func (s *Service) ListDocuments() []*model.Document {
	return s.manager.ListDocuments()
}

// GetStats 返回服务统计信息。
func (s *Service) GetStats(ctx context.Context) (map[string]any, error) {
	docs := s.manager.ListDocuments()
	indexed := 0
	totalChunks := 0
	for _, doc := range docs {
		if doc.Status == model.StatusIndexed {
			indexed++
			totalChunks += doc.ChunkCount
		}
	}

	cacheStats, err := s.cache.Stats(ctx)
	if err != nil {
		logger.Warnw("failed to collect cache stats", "error", err.Error())
		cacheStats = map[string]interface{}{"enabled": false}
	}

	return map[string]any{
		"documents": map[string]any{
			"total":   len(docs),
			"indexed": indexed,
			"chunks":  totalChunks,
		},
		"providers": map[string]any{
			"embedding": s.embedProvider.Name(),
			"chat":      s.chatProvider.Name(),
		},
		"cache":   cacheStats,
		"metrics": metrics.Get().Stats(),
	}, nil
}
