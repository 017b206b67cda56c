package service

import (
	"context"
	"fmt"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/repository"
	"bents-assistant-go/pkg/embedding"
	"bents-assistant-go/pkg/log"
)

// VectorSearcher 是按话题索引做向量检索的能力，*es.Client 实现了它。
type VectorSearcher interface {
	KNNSearch(ctx context.Context, indexName string, vector []float32, k int) ([]model.TranscriptChunk, error)
}

// RetrievalService 在指定话题的文稿索引中检索 top-k 分块。
type RetrievalService interface {
	Retrieve(ctx context.Context, topic, query string, k int) ([]model.TranscriptChunk, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	cache           repository.EmbeddingCacheRepository
	searcher        VectorSearcher
	chatCfg         config.ChatConfig
	esCfg           config.ElasticsearchConfig
	embeddingModel  string
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。cache 可以为 nil。
func NewRetrievalService(
	embeddingClient embedding.Client,
	cache repository.EmbeddingCacheRepository,
	searcher VectorSearcher,
	cfg *config.Config,
) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		cache:           cache,
		searcher:        searcher,
		chatCfg:         cfg.Chat,
		esCfg:           cfg.Elasticsearch,
		embeddingModel:  cfg.Embedding.Model,
	}
}

// Retrieve 向量化查询并在话题索引上做 kNN 检索。k <= 0 时使用配置的默认值。
// 内部不重试，失败直接返回给调用方。
func (s *retrievalService) Retrieve(ctx context.Context, topic, query string, k int) ([]model.TranscriptChunk, error) {
	if !s.chatCfg.HasTopic(topic) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if k <= 0 {
		k = s.chatCfg.TopK
	}
	log.Infof("[RetrievalService] 开始检索, topic: %s, k: %d", topic, k)

	// 1. 向量化查询
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		log.Errorf("[RetrievalService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	// 2. kNN 检索
	chunks, err := s.searcher.KNNSearch(ctx, s.esCfg.IndexName(topic), vector, k)
	if err != nil {
		log.Errorf("[RetrievalService] 向量检索失败: %v", err)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	log.Infof("[RetrievalService] 检索完成, 命中 %d 个分块", len(chunks))
	return chunks, nil
}

// embedQuery 优先读取 Redis 缓存。缓存读写失败只记录日志，不影响检索。
func (s *retrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.embeddingModel, query)
		if err != nil {
			log.Warnf("[RetrievalService] 读取向量缓存失败: %v", err)
		} else if cached != nil {
			log.Info("[RetrievalService] 命中向量缓存")
			return cached, nil
		}
	}

	vector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.embeddingModel, query, vector); err != nil {
			log.Warnf("[RetrievalService] 写入向量缓存失败: %v", err)
		}
	}
	return vector, nil
}
