package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// EmbeddingCacheRepository 在 Redis 中缓存查询文本的向量，避免重复调用 Embedding API。
type EmbeddingCacheRepository interface {
	// Get 返回缓存的向量，未命中时返回 (nil, nil)。
	Get(ctx context.Context, model, text string) ([]float32, error)
	Set(ctx context.Context, model, text string, vector []float32) error
}

type redisEmbeddingCacheRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewEmbeddingCacheRepository 创建一个新的 EmbeddingCacheRepository 实例。
func NewEmbeddingCacheRepository(redisClient *redis.Client, ttl time.Duration) EmbeddingCacheRepository {
	return &redisEmbeddingCacheRepository{redisClient: redisClient, ttl: ttl}
}

func embeddingCacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", model, hex.EncodeToString(sum[:]))
}

// Get 从 Redis 读取向量。
func (r *redisEmbeddingCacheRepository) Get(ctx context.Context, model, text string) ([]float32, error) {
	data, err := r.redisClient.Get(ctx, embeddingCacheKey(model, text)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached embedding: %w", err)
	}
	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached embedding: %w", err)
	}
	return vector, nil
}

// Set 写入向量并设置过期时间。
func (r *redisEmbeddingCacheRepository) Set(ctx context.Context, model, text string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	if err := r.redisClient.Set(ctx, embeddingCacheKey(model, text), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}
