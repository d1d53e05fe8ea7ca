package docqa

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/anaya/internal/docqa/biz"
	"github.com/kart-io/anaya/internal/docqa/handler"
	"github.com/kart-io/anaya/internal/docqa/router"
	"github.com/kart-io/anaya/internal/docqa/store"
	"github.com/kart-io/anaya/pkg/component/milvus"
	"github.com/kart-io/anaya/pkg/component/redis"
	"github.com/kart-io/anaya/pkg/infra/app"
	"github.com/kart-io/anaya/pkg/infra/pool"
	"github.com/kart-io/anaya/pkg/llm"

	// Register LLM providers
	_ "github.com/kart-io/anaya/pkg/llm/ollama"
	_ "github.com/kart-io/anaya/pkg/llm/openai"
)

const (
	appName        = "anaya"
	appDescription = `Anaya Document QA Service

A document question-answering assistant: upload PDF documents, then ask
natural-language questions answered from the indexed content.

This server provides:
  - PDF ingestion with chunking and vector embeddings
  - Multi-query retrieval with query expansion
  - Grounded answer synthesis with an LLM`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the document QA service with the given options.
func Run(opts *Options) error {
	fmt.Printf("Starting %s...\n", appName)

	// 1. 初始化日志
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting document QA service...")

	// 2. 初始化向量存储
	vectorStore, err := newVectorStore(opts)
	if err != nil {
		return err
	}
	defer vectorStore.Close(context.Background())
	logger.Infow("vector store initialized", "backend", opts.DocQA.StoreBackend)

	// 3. 初始化 LLM 供应商
	embedProvider, err := llm.NewProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	chatConfig := opts.Chat.ToConfigMap()
	chatConfig["temperature"] = opts.DocQA.SynthesisTemperature
	chatProvider, err := llm.NewProvider(opts.Chat.Provider, chatConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("LLM providers initialized",
		"embedding", embedProvider.Name(),
		"chat", chatProvider.Name(),
	)

	// 4. 初始化答案缓存
	answerCache := newAnswerCache(opts)

	// 5. 初始化摄取池
	ingestPool, err := pool.New("ingest", pool.IngestConfig(opts.DocQA.IngestWorkers))
	if err != nil {
		return fmt.Errorf("failed to create ingest pool: %w", err)
	}
	defer func() {
		if err := ingestPool.ReleaseTimeout(30 * time.Second); err != nil {
			logger.Warnw("ingest pool release timed out", "error", err.Error())
		}
	}()

	// 6. 初始化 Biz 层
	manager := biz.NewDocumentManager(vectorStore, embedProvider, ingestPool, &biz.ManagerConfig{
		ChunkMaxSize: opts.DocQA.ChunkMaxSize,
		ChunkOverlap: opts.DocQA.ChunkOverlap,
	})
	expander := biz.NewExpander(chatProvider, &biz.ExpanderConfig{
		Expansions: opts.DocQA.Expansions,
	})
	retriever := biz.NewRetriever(vectorStore, embedProvider, expander, &biz.RetrieverConfig{
		KPerQuery: opts.DocQA.KPerQuery,
	})
	generator := biz.NewGenerator(chatProvider, &biz.GeneratorConfig{
		SystemPrompt: opts.DocQA.SystemPrompt,
	})
	service := biz.NewService(manager, retriever, generator, answerCache, embedProvider, chatProvider)
	logger.Info("document QA service initialized")

	// 7. 初始化 Handler 层并注册路由
	docqaHandler := handler.NewDocQAHandler(service)
	engine := newEngine(opts.Server)
	router.Register(engine, docqaHandler)

	// 8. 启动服务器
	logger.Info("document QA service is ready")
	return runServer(opts.Server, engine)
}

// newVectorStore 按配置创建向量存储后端。
func newVectorStore(opts *Options) (store.VectorStore, error) {
	switch opts.DocQA.StoreBackend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "milvus":
		milvusClient, err := milvus.New(opts.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		return store.NewMilvusStore(milvusClient), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", opts.DocQA.StoreBackend)
	}
}

// newAnswerCache 创建答案缓存。Redis 不可用时降级为禁用缓存，
// 不阻止服务启动。
func newAnswerCache(opts *Options) *biz.AnswerCache {
	if !opts.Cache.Enabled {
		return biz.NewAnswerCache(nil, &biz.AnswerCacheConfig{Enabled: false})
	}

	redisClient, err := redis.New(opts.Cache.Redis)
	if err != nil {
		logger.Warnw("redis unavailable, answer cache disabled", "error", err.Error())
		return biz.NewAnswerCache(nil, &biz.AnswerCacheConfig{Enabled: false})
	}

	logger.Infow("answer cache enabled", "ttl", opts.Cache.TTL.String())
	return biz.NewAnswerCache(redisClient.Client(), &biz.AnswerCacheConfig{
		Enabled:   true,
		TTL:       opts.Cache.TTL,
		KeyPrefix: opts.Cache.KeyPrefix,
	})
}
