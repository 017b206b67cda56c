// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// Client 封装了 go-elasticsearch 客户端，提供文稿索引的建索引、写入和向量检索。
type Client struct {
	es *elasticsearch.Client
}

// NewClient 根据配置创建 Elasticsearch 客户端。
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{es: client}, nil
}

// EnsureIndex 检查索引是否存在，如果不存在则按文稿分块的 mapping 创建它。
func (c *Client) EnsureIndex(ctx context.Context, indexName string, dims int) error {
	res, err := c.es.Indices.Exists([]string{indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"topic": { "type": "keyword" },
				"title": { "type": "keyword" },
				"url": { "type": "keyword", "index": false },
				"text_content": { "type": "text", "analyzer": "english" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" },
				"upload_id": { "type": "long" }
			}
		}
	}`, dims)

	res, err = c.es.Indices.Create(
		indexName,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return fmt.Errorf("创建索引 %s 时 Elasticsearch 返回错误: %s", indexName, res.Status())
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// DocumentID 由分块 ID 派生出稳定且可放进 URL 路径的文档 ID，重复入库会覆盖旧文档。
func DocumentID(indexName, chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(indexName+"/"+chunkID)).String()
}

// IndexDocument 将单个文稿分块索引到 Elasticsearch。
func (c *Client) IndexDocument(ctx context.Context, indexName string, doc model.EsTranscriptChunk) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: DocumentID(indexName, doc.ChunkID),
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("failed to index document %s: %s", doc.ChunkID, res.Status())
	}
	return nil
}

// DeleteByUpload 删除某次上传产生的全部分块，用于重新入库前的清理。
func (c *Client) DeleteByUpload(ctx context.Context, indexName string, uploadID uint) error {
	query := fmt.Sprintf(`{"query":{"term":{"upload_id":%d}}}`, uploadID)
	res, err := c.es.DeleteByQuery(
		[]string{indexName},
		strings.NewReader(query),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete by query on %s failed: %s", indexName, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source model.EsTranscriptChunk `json:"_source"`
			Score  float64                 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// KNNSearch 在指定索引上执行向量近邻检索，结果按相似度降序。
func (c *Client) KNNSearch(ctx context.Context, indexName string, vector []float32, k int) ([]model.TranscriptChunk, error) {
	numCandidates := k * 10
	if numCandidates < 50 {
		numCandidates = 50
	}
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"size": k,
		"_source": map[string]interface{}{
			"excludes": []string{"vector"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indexName),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[ES] 检索返回错误, index: %s, status: %s, body: %s", indexName, res.Status(), string(body))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse searchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	chunks := make([]model.TranscriptChunk, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		chunks = append(chunks, hit.Source.ToChunk(hit.Score))
	}
	return chunks, nil
}
