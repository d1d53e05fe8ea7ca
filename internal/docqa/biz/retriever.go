package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/anaya/internal/docqa/store"
	"github.com/kart-io/anaya/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// KPerQuery 每个查询变体在每个集合上返回的结果数量。
	KPerQuery int
}

// ContextSet 表示一次检索得到的去重上下文集合。
type ContextSet struct {
	// Expansions 本次检索使用的全部查询变体，首位为原始问题。
	Expansions []string
	// Results 去重后的检索结果，按分数降序排列。
	Results []*store.SearchResult
}

// Empty 报告上下文集合是否为空。
func (c *ContextSet) Empty() bool {
	return c == nil || len(c.Results) == 0
}

// Retriever 负责多查询检索：扩展问题、逐变体嵌入并搜索、合并去重。
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	expander      *Expander
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	expander *Expander,
	config *RetrieverConfig,
) *Retriever {
	if config == nil {
		config = &RetrieverConfig{KPerQuery: 5}
	}
	if config.KPerQuery <= 0 {
		config.KPerQuery = 5
	}
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		expander:      expander,
		config:        config,
	}
}

// dedupeKey 块的唯一标识：文档 ID + 块序号。
type dedupeKey struct {
	documentID string
	offset     int
}

// Retrieve 对给定集合执行多查询检索。
// 空集合列表返回空上下文集合而非错误；部分变体检索失败被容忍（记日志），
// 全部失败时返回包装首个失败原因的 *RetrievalError。
func (r *Retriever) Retrieve(ctx context.Context, question string, collections []string) (*ContextSet, error) {
	variants := append([]string{question}, r.expander.Expand(ctx, question)...)

	if len(collections) == 0 {
		return &ContextSet{Expansions: variants, Results: []*store.SearchResult{}}, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		merged   = make(map[dedupeKey]*store.SearchResult)
		firstErr error
		failures int
	)
	total := len(variants) * len(collections)

	for _, variant := range variants {
		embedding, err := r.embedProvider.EmbedSingle(ctx, variant)
		if err != nil || len(embedding) == 0 {
			if err == nil {
				err = fmt.Errorf("provider returned no embedding")
			}
			logger.Warnw("变体嵌入失败", "variant", variant, "error", err.Error())
			mu.Lock()
			if firstErr == nil {
				firstErr = &EmbeddingError{Text: variant, Err: err}
			}
			failures += len(collections)
			mu.Unlock()
			continue
		}

		for _, collection := range collections {
			wg.Add(1)
			go func(vector []float32, collection string) {
				defer wg.Done()

				results, err := r.store.Search(ctx, collection, vector, r.config.KPerQuery)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					logger.Warnw("变体检索失败", "collection", collection, "error", err.Error())
					if firstErr == nil {
						firstErr = err
					}
					failures++
					return
				}
				for _, res := range results {
					key := dedupeKey{documentID: res.DocumentID, offset: res.Offset}
					if existing, ok := merged[key]; !ok || res.Score > existing.Score {
						merged[key] = res
					}
				}
			}(embedding, collection)
		}
	}

	wg.Wait()

	if failures > 0 && failures == total {
		return nil, &RetrievalError{Question: question, Err: firstErr}
	}

	results := make([]*store.SearchResult, 0, len(merged))
	for _, res := range merged {
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	logger.Infow("retrieval completed",
		"variants", len(variants),
		"collections", len(collections),
		"results", len(results),
		"failed_searches", failures,
	)

	return &ContextSet{Expansions: variants, Results: results}, nil
}
