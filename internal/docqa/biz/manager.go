package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/anaya/internal/docqa/store"
	"github.com/kart-io/anaya/internal/model"
	"github.com/kart-io/anaya/internal/pkg/extract"
	"github.com/kart-io/anaya/internal/pkg/textutil"
	"github.com/kart-io/anaya/pkg/infra/pool"
	"github.com/kart-io/anaya/pkg/llm"
)

// extractPDF 提取函数，测试中可替换。
var extractPDF = extract.PDF

// ManagerConfig 文档管理器配置。
type ManagerConfig struct {
	// ChunkMaxSize 块最大长度（Unicode 字符数）。
	ChunkMaxSize int
	// ChunkOverlap 相邻块重叠长度。
	ChunkOverlap int
}

// Upload 表示一次文档上传。
type Upload struct {
	// Name 上传文件名。
	Name string
	// Data 原始字节内容。
	Data []byte
}

// DocumentManager 管理文档生命周期与集合映射。
// 每个文档对应向量索引中的一个独立集合；集合名由文档 ID 与内容
// 哈希共同决定，内容变化的重新上传会得到新集合而不是复用旧数据。
type DocumentManager struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	ingestPool    *pool.Pool
	config        *ManagerConfig

	mu        sync.RWMutex
	documents map[string]*model.Document

	// 按集合名串行化 upsert/search 与 delete
	lockMu          sync.Mutex
	collectionLocks map[string]*sync.RWMutex
}

// NewDocumentManager 创建文档管理器实例。
func NewDocumentManager(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	ingestPool *pool.Pool,
	config *ManagerConfig,
) *DocumentManager {
	if config == nil {
		config = &ManagerConfig{ChunkMaxSize: 7500, ChunkOverlap: 100}
	}
	if config.ChunkMaxSize <= 0 {
		config.ChunkMaxSize = 7500
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 100
	}
	return &DocumentManager{
		store:           vectorStore,
		embedProvider:   embedProvider,
		ingestPool:      ingestPool,
		config:          config,
		documents:       make(map[string]*model.Document),
		collectionLocks: make(map[string]*sync.RWMutex),
	}
}

// collectionLock 返回集合对应的锁，不存在时创建。
func (m *DocumentManager) collectionLock(collection string) *sync.RWMutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	lock, ok := m.collectionLocks[collection]
	if !ok {
		lock = &sync.RWMutex{}
		m.collectionLocks[collection] = lock
	}
	return lock
}

// RLockCollections 获取一组集合的读锁，返回统一的释放函数。
// 检索期间持有读锁，阻止并发删除读到删除到一半的集合。
// 集合名先排序再加锁，避免交叉加锁造成死锁。
func (m *DocumentManager) RLockCollections(collections []string) func() {
	sorted := make([]string, len(collections))
	copy(sorted, collections)
	sort.Strings(sorted)

	locks := make([]*sync.RWMutex, 0, len(sorted))
	for _, name := range sorted {
		lock := m.collectionLock(name)
		lock.RLock()
		locks = append(locks, lock)
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].RUnlock()
		}
	}
}

// collectionName 由文档 ID 与内容哈希派生集合名。
func collectionName(docID, contentHash string) string {
	return "doc_" + textutil.HashString(docID+"_"+contentHash)[:16]
}

// GetOrCreateCollection 为上传文档建立集合并完成摄取。
// 同名同内容的重复上传复用已有集合（跳过重新嵌入）；内容变化时
// 派生出新集合名，走完整摄取流程，同时删除被替换文档的旧集合。
// 失败的文档没有集合，重新上传视为新的文档实例。
// 第二个返回值是被替换删除的旧集合名，供上层做缓存失效。
func (m *DocumentManager) GetOrCreateCollection(ctx context.Context, upload *Upload) (*model.Document, string, error) {
	if upload == nil || upload.Name == "" {
		return nil, "", fmt.Errorf("upload name is required")
	}

	docID := textutil.HashString(upload.Name)
	contentHash := textutil.HashBytes(upload.Data)
	collection := collectionName(docID, contentHash)

	// 同内容重复上传：直接复用已索引的集合
	m.mu.Lock()
	existing := m.documents[docID]
	if existing != nil && existing.Hash == contentHash && existing.Status == model.StatusIndexed {
		snapshot := *existing
		m.mu.Unlock()
		logger.Infow("reusing indexed collection", "document", upload.Name, "collection", collection)
		return &snapshot, "", nil
	}

	now := time.Now()
	doc := &model.Document{
		ID:        docID,
		Name:      upload.Name,
		Hash:      contentHash,
		Status:    model.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.documents[docID] = doc

	// 内容变化的重新上传：旧集合被替换，不再有文档引用它
	replaced := ""
	if existing != nil && existing.Collection != "" && existing.Collection != collection {
		replaced = existing.Collection
	}
	m.mu.Unlock()

	if replaced != "" {
		lock := m.collectionLock(replaced)
		lock.Lock()
		if err := m.store.Drop(ctx, replaced); err != nil {
			logger.Warnw("failed to drop superseded collection", "collection", replaced, "error", err.Error())
		}
		lock.Unlock()
		logger.Infow("superseded collection dropped", "document", upload.Name, "collection", replaced)
	}

	if err := m.ingest(ctx, doc, collection, upload.Data); err != nil {
		return m.snapshotDoc(doc), replaced, &IngestError{DocumentID: docID, Err: err}
	}
	return m.snapshotDoc(doc), replaced, nil
}

// snapshotDoc 在锁内拷贝文档，调用方拿到的对象不会被后续摄取修改。
func (m *DocumentManager) snapshotDoc(doc *model.Document) *model.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := *doc
	return &snapshot
}

// ingest 执行单个文档的提取、分块、嵌入与写入。
func (m *DocumentManager) ingest(ctx context.Context, doc *model.Document, collection string, data []byte) error {
	m.setStatus(doc, model.StatusIngesting, "")
	ingestID := uuid.NewString()
	logger.Infow("ingesting document", "ingest_id", ingestID, "document", doc.Name, "bytes", len(data))

	segments, err := extractPDF(data)
	if err != nil {
		m.setStatus(doc, model.StatusFailed, err.Error())
		return err
	}

	chunks, err := SplitSegments(segments, doc.ID, doc.Name, m.config.ChunkMaxSize, m.config.ChunkOverlap)
	if err != nil {
		m.setStatus(doc, model.StatusFailed, err.Error())
		return err
	}
	if len(chunks) == 0 {
		err := fmt.Errorf("document produced no chunks")
		m.setStatus(doc, model.StatusFailed, err.Error())
		return err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	embeddings, err := m.embedProvider.Embed(ctx, texts)
	if err != nil {
		embedErr := &EmbeddingError{Err: err}
		m.setStatus(doc, model.StatusFailed, embedErr.Error())
		return embedErr
	}
	if len(embeddings) != len(chunks) {
		embedErr := &EmbeddingError{Err: fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(embeddings))}
		m.setStatus(doc, model.StatusFailed, embedErr.Error())
		return embedErr
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	// 写入阶段持集合写锁，与并发的检索/删除互斥
	lock := m.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.EnsureCollection(ctx, collection, len(embeddings[0])); err != nil {
		m.setStatus(doc, model.StatusFailed, err.Error())
		return err
	}
	written, err := m.store.Upsert(ctx, collection, chunks)
	if err != nil {
		// 保持失败文档没有集合的不变式
		_ = m.store.Drop(ctx, collection)
		m.setStatus(doc, model.StatusFailed, err.Error())
		return err
	}

	m.mu.Lock()
	doc.Collection = collection
	doc.ChunkCount = len(chunks)
	doc.Status = model.StatusIndexed
	doc.Error = ""
	doc.UpdatedAt = time.Now()
	m.mu.Unlock()

	logger.Infow("document indexed",
		"ingest_id", ingestID,
		"document", doc.Name,
		"collection", collection,
		"chunks", len(chunks),
		"written", written,
	)
	return nil
}

// setStatus 更新文档状态。
func (m *DocumentManager) setStatus(doc *model.Document, status model.DocumentStatus, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.Status = status
	doc.Error = errMsg
	doc.UpdatedAt = time.Now()
}

// IngestBatch 并行摄取多个文档。单个文档失败不影响其余文档，
// 失败信息记录在对应 Document 的 Error 字段并作为 IngestError 返回。
// 第二个返回值是每个上传对应被替换删除的旧集合名（无替换为空）。
func (m *DocumentManager) IngestBatch(ctx context.Context, uploads []*Upload) ([]*model.Document, []string, []error) {
	docs := make([]*model.Document, len(uploads))
	replaced := make([]string, len(uploads))
	errs := make([]error, len(uploads))

	var wg sync.WaitGroup
	for i, upload := range uploads {
		wg.Add(1)
		i, upload := i, upload

		task := func() {
			defer wg.Done()
			doc, old, err := m.GetOrCreateCollection(ctx, upload)
			docs[i] = doc
			replaced[i] = old
			errs[i] = err
		}

		if m.ingestPool != nil {
			if err := m.ingestPool.Submit(task); err != nil {
				wg.Done()
				errs[i] = fmt.Errorf("failed to submit ingest task: %w", err)
			}
		} else {
			go task()
		}
	}
	wg.Wait()

	return docs, replaced, errs
}

// DeleteDocument 删除文档及其集合。返回被删除的集合名，供上层做
// 缓存失效。文档不存在时返回 (""), false。
func (m *DocumentManager) DeleteDocument(ctx context.Context, documentID string) (string, bool, error) {
	m.mu.Lock()
	doc, ok := m.documents[documentID]
	if !ok {
		m.mu.Unlock()
		return "", false, nil
	}
	collection := doc.Collection
	delete(m.documents, documentID)
	m.mu.Unlock()

	if collection == "" {
		return "", true, nil
	}

	// 删除与 upsert/search 互斥
	lock := m.collectionLock(collection)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Drop(ctx, collection); err != nil {
		return collection, true, fmt.Errorf("failed to drop collection %s: %w", collection, err)
	}

	logger.Infow("document deleted", "document_id", documentID, "collection", collection)
	return collection, true, nil
}

// GetDocument 返回指定文档的副本。返回副本而非内部指针，
// 避免调用方与进行中的摄取并发读写同一对象。
func (m *DocumentManager) GetDocument(documentID string) (*model.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return nil, false
	}
	snapshot := *doc
	return &snapshot, true
}

// ListDocuments 返回全部文档的副本，按创建时间排序。
func (m *DocumentManager) ListDocuments() []*model.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*model.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		snapshot := *doc
		docs = append(docs, &snapshot)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs
}

// IndexedCollections 返回全部已索引文档的集合名。
func (m *DocumentManager) IndexedCollections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	collections := make([]string, 0, len(m.documents))
	for _, doc := range m.documents {
		if doc.Status == model.StatusIndexed && doc.Collection != "" {
			collections = append(collections, doc.Collection)
		}
	}
	sort.Strings(collections)
	return collections
}
