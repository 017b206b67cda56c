// Package pipeline 定义了文稿入库的核心流程：下载、抽取文本、切块、向量化并写入话题索引。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/repository"
	"bents-assistant-go/pkg/embedding"
	"bents-assistant-go/pkg/log"
	"bents-assistant-go/pkg/storage"
	"bents-assistant-go/pkg/tasks"

	"golang.org/x/sync/errgroup"
)

// DefaultTitle 是文稿没有可用首行时使用的标题。
const DefaultTitle = "Untitled Video"

// embedBatchSize 是单次向量化请求包含的分块数。
const embedBatchSize = 16

// TextExtractor 从文件中抽取纯文本，*tika.Client 实现了它。
type TextExtractor interface {
	ExtractText(ctx context.Context, fileReader io.Reader, fileName string) (string, error)
}

// ChunkIndexer 是写入话题索引所需的能力，*es.Client 实现了它。
type ChunkIndexer interface {
	EnsureIndex(ctx context.Context, indexName string, dims int) error
	DeleteByUpload(ctx context.Context, indexName string, uploadID uint) error
	IndexDocument(ctx context.Context, indexName string, doc model.EsTranscriptChunk) error
}

// Processor 封装了文稿处理的所有依赖和逻辑。
type Processor struct {
	store           storage.ObjectStore
	extractor       TextExtractor
	embeddingClient embedding.Client
	indexer         ChunkIndexer
	uploadRepo      repository.UploadRepository
	esCfg           config.ElasticsearchConfig
	embeddingCfg    config.EmbeddingConfig
	ingestCfg       config.IngestConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	store storage.ObjectStore,
	extractor TextExtractor,
	embeddingClient embedding.Client,
	indexer ChunkIndexer,
	uploadRepo repository.UploadRepository,
	cfg *config.Config,
) *Processor {
	return &Processor{
		store:           store,
		extractor:       extractor,
		embeddingClient: embeddingClient,
		indexer:         indexer,
		uploadRepo:      uploadRepo,
		esCfg:           cfg.Elasticsearch,
		embeddingCfg:    cfg.Embedding,
		ingestCfg:       cfg.Ingest,
	}
}

// Process 是文稿处理的主函数。返回错误时由消费者负责重试。
func (p *Processor) Process(ctx context.Context, task tasks.TranscriptTask) error {
	log.Infof("[Processor] 开始处理文稿, UploadID: %d, Object: %s, Topic: %s", task.UploadID, task.ObjectName, task.Topic)
	indexName := p.esCfg.IndexName(task.Topic)

	// 1. 从 MinIO 下载文件
	data, err := p.store.GetObject(ctx, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] 下载文件失败, Object: %s, Error: %v", task.ObjectName, err)
		return err
	}
	if len(data) == 0 {
		log.Warnf("[Processor] 文件 '%s' 内容为空, 处理中止", task.FileName)
		return errors.New("文件内容为空")
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小: %d 字节", len(data))

	// 2. 使用 Tika 提取文本
	text, err := p.extractor.ExtractText(ctx, bytes.NewReader(data), task.FileName)
	if err != nil {
		log.Errorf("[Processor] 使用Tika提取文本失败, FileName: %s, Error: %v", task.FileName, err)
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("提取的文本内容为空")
	}
	title := ExtractTitle(text)
	log.Infof("[Processor] 步骤2: 文本提取成功, 标题: %s, 长度: %d 字符", title, utf8.RuneCountInString(text))

	// 3. 文本切块
	chunks := SplitText(text, p.ingestCfg.ChunkSize, p.ingestCfg.ChunkOverlap)
	if len(chunks) == 0 {
		return errors.New("未生成任何文本分块")
	}
	log.Infof("[Processor] 步骤3: 文本分块完成, 共 %d 个分块", len(chunks))

	// 4. 并发向量化
	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	// 5. 清理旧分块后写入索引，保证重复处理是幂等的
	if err := p.indexer.EnsureIndex(ctx, indexName, p.embeddingCfg.Dimensions); err != nil {
		return fmt.Errorf("确保索引 %s 存在失败: %w", indexName, err)
	}
	if err := p.indexer.DeleteByUpload(ctx, indexName, task.UploadID); err != nil {
		log.Warnf("[Processor] 清理上传 %d 的旧分块失败: %v", task.UploadID, err)
	}
	for i, chunk := range chunks {
		doc := model.EsTranscriptChunk{
			ChunkID:      ChunkID(title, i),
			Topic:        task.Topic,
			Title:        title,
			URL:          task.VideoURL,
			TextContent:  chunk,
			Vector:       vectors[i],
			ModelVersion: p.embeddingCfg.Model,
			UploadID:     task.UploadID,
		}
		if err := p.indexer.IndexDocument(ctx, indexName, doc); err != nil {
			log.Errorf("[Processor] 索引分块 %d 失败, Error: %v", i, err)
			return fmt.Errorf("索引块 %d 到 Elasticsearch 失败: %w", i, err)
		}
	}
	log.Infof("[Processor] 步骤5: %d 个分块已写入索引 %s", len(chunks), indexName)

	if err := p.uploadRepo.MarkIndexed(ctx, task.UploadID, title, len(chunks)); err != nil {
		log.Errorf("[Processor] 更新上传记录失败, UploadID: %d, Error: %v", task.UploadID, err)
		return err
	}
	log.Infof("[Processor] 文稿处理成功完成, UploadID: %d", task.UploadID)
	return nil
}

// MarkFailed 在重试耗尽后把上传记录标记为失败。
func (p *Processor) MarkFailed(ctx context.Context, task tasks.TranscriptTask, cause error) {
	log.Errorf("[Processor] 文稿入库最终失败, UploadID: %d, Cause: %v", task.UploadID, cause)
	if err := p.uploadRepo.UpdateStatus(ctx, task.UploadID, model.UploadStatusFailed); err != nil {
		log.Errorf("[Processor] 标记上传记录失败状态出错: %v", err)
	}
}

// embedChunks 按批次并发调用向量化服务，结果顺序与 chunks 一致。
func (p *Processor) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	limit := p.ingestCfg.EmbedConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for start := 0; start < len(chunks); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			batch, err := p.embeddingClient.CreateEmbeddings(gctx, chunks[start:end])
			if err != nil {
				return fmt.Errorf("分块 %d-%d 向量化失败: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("分块 %d-%d 向量数量不匹配: %d", start, end-1, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorf("[Processor] 向量化失败: %v", err)
		return nil, err
	}
	return vectors, nil
}

// ExtractTitle 取第一行非空文本作为视频标题。
func ExtractTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return DefaultTitle
}

// ChunkID 返回分块在索引中的标识。
func ChunkID(title string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", title, i)
}

// SplitText 将长文本按字符数切块，相邻分块重叠 chunkOverlap 个字符。
// chunkOverlap 不合法时退化为不重叠的切分。
func SplitText(text string, chunkSize, chunkOverlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 || chunkSize <= 0 {
		return nil
	}
	step := chunkSize - chunkOverlap
	if chunkOverlap < 0 || step <= 0 {
		step = chunkSize
	}

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
