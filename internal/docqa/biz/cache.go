package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/anaya/internal/model"
)

// AnswerCacheConfig 答案缓存配置。
type AnswerCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// AnswerCache 基于 Redis 的问答结果缓存。
// 键由参与检索的集合名与问题共同决定；每个集合维护一个索引 set，
// 集合被删除时据此精确失效相关缓存项。
type AnswerCache struct {
	redis  *goredis.Client
	config *AnswerCacheConfig
}

// NewAnswerCache 创建答案缓存实例。
func NewAnswerCache(redis *goredis.Client, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = &AnswerCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "anaya:answer:",
		}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "anaya:answer:"
	}
	return &AnswerCache{
		redis:  redis,
		config: config,
	}
}

// enabled 报告缓存是否可用。
func (c *AnswerCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// cacheKey 基于集合集合与问题生成缓存键（SHA256）。
// 集合名先排序，保证相同集合组合得到相同的键。
func (c *AnswerCache) cacheKey(collections []string, question string) string {
	sorted := make([]string, len(collections))
	copy(sorted, collections)
	sort.Strings(sorted)

	hash := sha256.Sum256([]byte(strings.Join(sorted, ",") + "|" + question))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// indexKey 返回某个集合的缓存索引 set 的键。
func (c *AnswerCache) indexKey(collection string) string {
	return c.config.KeyPrefix + "index:" + collection
}

// Get 从缓存获取问答结果，未命中时返回 (nil, nil)。
func (c *AnswerCache) Get(ctx context.Context, collections []string, question string) (*model.QueryResult, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := c.cacheKey(collections, question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			logger.Debugw("answer cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from answer cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached answer", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Infow("answer cache hit", "key", key, "answer_length", len(result.Answer))
	return &result, nil
}

// Set 将问答结果写入缓存，并把缓存键登记到每个参与集合的索引 set。
func (c *AnswerCache) Set(ctx context.Context, collections []string, question string, result *model.QueryResult) error {
	if !c.enabled() {
		return nil
	}

	key := c.cacheKey(collections, question)
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal answer for caching", "error", err.Error())
		return err
	}

	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set answer cache", "error", err.Error(), "key", key)
		return err
	}

	for _, collection := range collections {
		if err := c.redis.SAdd(ctx, c.indexKey(collection), key).Err(); err != nil {
			logger.Warnw("failed to index cache key", "error", err.Error(), "collection", collection)
		}
		_ = c.redis.Expire(ctx, c.indexKey(collection), c.config.TTL).Err()
	}

	logger.Infow("cached answer", "key", key, "ttl", c.config.TTL)
	return nil
}

// InvalidateCollection 使引用了指定集合的所有缓存项失效。
// 集合被删除时调用，保证不会返回指向已删除文档的答案。
func (c *AnswerCache) InvalidateCollection(ctx context.Context, collection string) error {
	if !c.enabled() {
		return nil
	}

	indexKey := c.indexKey(collection)
	keys, err := c.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		logger.Warnw("failed to read cache index", "error", err.Error(), "collection", collection)
		return err
	}

	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			logger.Warnw("failed to delete cached answers", "error", err.Error(), "collection", collection)
			return err
		}
	}
	if err := c.redis.Del(ctx, indexKey).Err(); err != nil {
		return err
	}

	logger.Infow("invalidated answer cache", "collection", collection, "deleted", len(keys))
	return nil
}

// Stats 返回缓存统计信息。
func (c *AnswerCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	if !c.enabled() {
		return map[string]interface{}{
			"enabled": false,
		}, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
