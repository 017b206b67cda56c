package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"
	"bents-assistant-go/internal/repository"
	"bents-assistant-go/pkg/log"
	"bents-assistant-go/pkg/storage"
	"bents-assistant-go/pkg/tasks"

	"github.com/google/uuid"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// TaskProducer 发送文稿入库任务，*kafka.Producer 实现了它。
type TaskProducer interface {
	ProduceTranscriptTask(ctx context.Context, task tasks.TranscriptTask) error
}

// UploadInput 是一次文稿上传的参数。
type UploadInput struct {
	FileName string
	Size     int64
	Reader   io.Reader
	Topic    string
	VideoURL string
}

// UploadService 负责接收文稿文件并投递异步入库任务。
type UploadService interface {
	Upload(ctx context.Context, in UploadInput) (*model.TranscriptUpload, error)
	List(ctx context.Context, topic string) ([]model.TranscriptUpload, error)
}

type uploadService struct {
	store    storage.ObjectStore
	repo     repository.UploadRepository
	producer TaskProducer
	chatCfg  config.ChatConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(store storage.ObjectStore, repo repository.UploadRepository, producer TaskProducer, chatCfg config.ChatConfig) UploadService {
	return &uploadService{store: store, repo: repo, producer: producer, chatCfg: chatCfg}
}

// ObjectName 返回文稿在对象存储中的路径。
func ObjectName(topic, fileName string) string {
	return fmt.Sprintf("transcripts/%s/%s-%s", topic, uuid.NewString(), filepath.Base(fileName))
}

// Upload 校验文件后写入 MinIO，创建上传记录并发送 Kafka 任务。
func (s *uploadService) Upload(ctx context.Context, in UploadInput) (*model.TranscriptUpload, error) {
	if !strings.EqualFold(filepath.Ext(in.FileName), ".docx") {
		return nil, fmt.Errorf("%w: only .docx transcripts are supported", ErrInvalidInput)
	}
	if !s.chatCfg.HasTopic(in.Topic) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, in.Topic)
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	objectName := ObjectName(in.Topic, in.FileName)
	if err := s.store.PutObject(ctx, objectName, in.Reader, in.Size, docxContentType); err != nil {
		log.Errorf("[UploadService] 上传文稿到 MinIO 失败: %v", err)
		return nil, err
	}

	record := &model.TranscriptUpload{
		ObjectName: objectName,
		FileName:   filepath.Base(in.FileName),
		Topic:      in.Topic,
		VideoURL:   strings.TrimSpace(in.VideoURL),
		Status:     model.UploadStatusPending,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create upload record: %w", err)
	}

	task := tasks.TranscriptTask{
		UploadID:   record.ID,
		ObjectName: objectName,
		FileName:   record.FileName,
		Topic:      record.Topic,
		VideoURL:   record.VideoURL,
	}
	if err := s.producer.ProduceTranscriptTask(ctx, task); err != nil {
		log.Errorf("[UploadService] 发送入库任务失败, UploadID: %d, Error: %v", record.ID, err)
		if uerr := s.repo.UpdateStatus(ctx, record.ID, model.UploadStatusFailed); uerr != nil {
			log.Errorf("[UploadService] 标记上传失败状态出错: %v", uerr)
		}
		return nil, fmt.Errorf("failed to enqueue transcript task: %w", err)
	}
	log.Infof("[UploadService] 文稿已入队, UploadID: %d, Object: %s", record.ID, objectName)
	return record, nil
}

// List 返回上传记录，topic 为空时返回全部。
func (s *uploadService) List(ctx context.Context, topic string) ([]model.TranscriptUpload, error) {
	if topic != "" && !s.chatCfg.HasTopic(topic) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	records, err := s.repo.ListByTopic(ctx, topic)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.TranscriptUpload{}
	}
	return records, nil
}
