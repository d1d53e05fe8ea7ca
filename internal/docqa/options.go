// Package docqa provides the document QA service application.
package docqa

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/anaya/internal/docqa/biz"
	logopts "github.com/kart-io/anaya/pkg/options/logger"
	milvusopts "github.com/kart-io/anaya/pkg/options/milvus"
	redisopts "github.com/kart-io/anaya/pkg/options/redis"
)

// ServerOptions HTTP 服务配置。
type ServerOptions struct {
	// Addr 监听地址。
	Addr string `json:"addr" mapstructure:"addr"`

	// Mode gin 运行模式（debug, release, test）。
	Mode string `json:"mode" mapstructure:"mode"`

	// ShutdownTimeout 优雅关闭超时时间。
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions 创建默认服务配置。
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		Addr:            ":8083",
		Mode:            "release",
		ShutdownTimeout: 10 * time.Second,
	}
}

// LLMProviderOptions 定义 LLM 供应商配置。
type LLMProviderOptions struct {
	// Provider 供应商名称（ollama, openai 等）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`
}

// NewLLMProviderOptions 创建默认 LLM 供应商配置。
func NewLLMProviderOptions() *LLMProviderOptions {
	return &LLMProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *LLMProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// DocQAOptions contains pipeline-specific configuration.
type DocQAOptions struct {
	// ChunkMaxSize is the maximum chunk length in characters.
	ChunkMaxSize int `json:"chunk-max-size" mapstructure:"chunk-max-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// Expansions is the number of query variants generated per question.
	Expansions int `json:"expansions" mapstructure:"expansions"`

	// KPerQuery is the number of results per query variant per collection.
	KPerQuery int `json:"k-per-query" mapstructure:"k-per-query"`

	// SynthesisTemperature is the chat model temperature for answers.
	SynthesisTemperature float64 `json:"synthesis-temperature" mapstructure:"synthesis-temperature"`

	// SystemPrompt is the answer synthesis prompt template.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// StoreBackend selects the vector store backend (milvus, memory).
	StoreBackend string `json:"store-backend" mapstructure:"store-backend"`

	// IngestWorkers is the worker pool size for parallel ingestion.
	IngestWorkers int `json:"ingest-workers" mapstructure:"ingest-workers"`
}

// NewDocQAOptions creates new DocQAOptions with defaults.
func NewDocQAOptions() *DocQAOptions {
	return &DocQAOptions{
		ChunkMaxSize:         7500,
		ChunkOverlap:         100,
		Expansions:           3,
		KPerQuery:            5,
		SynthesisTemperature: 0,
		SystemPrompt:         biz.DefaultSystemPrompt,
		StoreBackend:         "milvus",
		IngestWorkers:        4,
	}
}

// CacheOptions 答案缓存配置。
type CacheOptions struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewCacheOptions 创建默认缓存配置。
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "anaya:answer:",
		Redis:     redisopts.NewOptions(),
	}
}

// Options contains all document QA service options.
type Options struct {
	// Server contains HTTP server configuration.
	Server *ServerOptions `json:"server" mapstructure:"server"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains Milvus database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *LLMProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *LLMProviderOptions `json:"chat" mapstructure:"chat"`

	// DocQA contains pipeline configuration.
	DocQA *DocQAOptions `json:"docqa" mapstructure:"docqa"`

	// Cache contains answer cache configuration.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	embeddingOpts := NewLLMProviderOptions()
	embeddingOpts.Model = "nomic-embed-text"

	chatOpts := NewLLMProviderOptions()
	chatOpts.Model = "llama3:8b"

	return &Options{
		Server:    NewServerOptions(),
		Log:       logopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Embedding: embeddingOpts,
		Chat:      chatOpts,
		DocQA:     NewDocQAOptions(),
		Cache:     NewCacheOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "HTTP listen address")
	fs.StringVar(&o.Server.Mode, "server.mode", o.Server.Mode, "Gin mode (debug, release, test)")
	fs.DurationVar(&o.Server.ShutdownTimeout, "server.shutdown-timeout", o.Server.ShutdownTimeout, "Graceful shutdown timeout")

	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.addEmbeddingFlags(fs)
	o.addChatFlags(fs)
	o.addDocQAFlags(fs)
	o.addCacheFlags(fs)
}

func (o *Options) addEmbeddingFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Embedding.Provider, "embedding.provider", o.Embedding.Provider, "Embedding provider (ollama, openai)")
	fs.StringVar(&o.Embedding.BaseURL, "embedding.base-url", o.Embedding.BaseURL, "Embedding API base URL")
	fs.StringVar(&o.Embedding.APIKey, "embedding.api-key", o.Embedding.APIKey, "Embedding API key (for OpenAI)")
	fs.StringVar(&o.Embedding.Model, "embedding.model", o.Embedding.Model, "Embedding model name")
	fs.DurationVar(&o.Embedding.Timeout, "embedding.timeout", o.Embedding.Timeout, "Embedding request timeout")
	fs.IntVar(&o.Embedding.MaxRetries, "embedding.max-retries", o.Embedding.MaxRetries, "Embedding max retries")
}

func (o *Options) addChatFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Chat.Provider, "chat.provider", o.Chat.Provider, "Chat provider (ollama, openai)")
	fs.StringVar(&o.Chat.BaseURL, "chat.base-url", o.Chat.BaseURL, "Chat API base URL")
	fs.StringVar(&o.Chat.APIKey, "chat.api-key", o.Chat.APIKey, "Chat API key (for OpenAI)")
	fs.StringVar(&o.Chat.Model, "chat.model", o.Chat.Model, "Chat model name")
	fs.DurationVar(&o.Chat.Timeout, "chat.timeout", o.Chat.Timeout, "Chat request timeout")
	fs.IntVar(&o.Chat.MaxRetries, "chat.max-retries", o.Chat.MaxRetries, "Chat max retries")
}

func (o *Options) addDocQAFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.DocQA.ChunkMaxSize, "docqa.chunk-max-size", o.DocQA.ChunkMaxSize, "Maximum chunk length in characters")
	fs.IntVar(&o.DocQA.ChunkOverlap, "docqa.chunk-overlap", o.DocQA.ChunkOverlap, "Overlap between consecutive chunks")
	fs.IntVar(&o.DocQA.Expansions, "docqa.expansions", o.DocQA.Expansions, "Query variants generated per question")
	fs.IntVar(&o.DocQA.KPerQuery, "docqa.k-per-query", o.DocQA.KPerQuery, "Results per query variant per collection")
	fs.Float64Var(&o.DocQA.SynthesisTemperature, "docqa.synthesis-temperature", o.DocQA.SynthesisTemperature, "Chat model temperature for answer synthesis")
	fs.StringVar(&o.DocQA.StoreBackend, "docqa.store-backend", o.DocQA.StoreBackend, "Vector store backend (milvus, memory)")
	fs.IntVar(&o.DocQA.IngestWorkers, "docqa.ingest-workers", o.DocQA.IngestWorkers, "Worker pool size for parallel ingestion")
}

func (o *Options) addCacheFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable answer cache")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Cache TTL duration")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Cache key prefix")
	o.Cache.Redis.AddFlags(fs, "cache")
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if o.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if o.DocQA.StoreBackend == "milvus" {
		if errs := o.Milvus.Validate(); len(errs) > 0 {
			return errs[0]
		}
	}
	if err := o.validateLLMProvider(o.Embedding, "embedding"); err != nil {
		return err
	}
	if err := o.validateLLMProvider(o.Chat, "chat"); err != nil {
		return err
	}
	if o.DocQA.ChunkMaxSize <= 0 {
		return fmt.Errorf("docqa.chunk-max-size must be positive")
	}
	if o.DocQA.ChunkOverlap < 0 || o.DocQA.ChunkOverlap >= o.DocQA.ChunkMaxSize {
		return fmt.Errorf("docqa.chunk-overlap must satisfy 0 <= overlap < chunk-max-size")
	}
	if o.DocQA.KPerQuery <= 0 {
		return fmt.Errorf("docqa.k-per-query must be positive")
	}
	if o.DocQA.StoreBackend != "milvus" && o.DocQA.StoreBackend != "memory" {
		return fmt.Errorf("docqa.store-backend must be milvus or memory, got %q", o.DocQA.StoreBackend)
	}
	if o.Cache.Enabled {
		if errs := o.Cache.Redis.Validate(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

func (o *Options) validateLLMProvider(opts *LLMProviderOptions, prefix string) error {
	if opts.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if opts.BaseURL == "" {
		return fmt.Errorf("%s.base-url is required", prefix)
	}
	if opts.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	// OpenAI 供应商需要 API key
	if opts.Provider == "openai" && opts.APIKey == "" {
		return fmt.Errorf("%s.api-key is required for openai provider", prefix)
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	return nil
}

// Complete completes the options.
func (o *Options) Complete() error {
	if o.DocQA.IngestWorkers <= 0 {
		o.DocQA.IngestWorkers = 4
	}
	if o.DocQA.SystemPrompt == "" {
		o.DocQA.SystemPrompt = biz.DefaultSystemPrompt
	}
	return nil
}
