package repository

import (
	"context"
	"time"

	"bents-assistant-go/internal/model"

	"gorm.io/gorm"
)

// UploadRepository 接口定义了文稿上传记录的持久化操作。
type UploadRepository interface {
	Create(ctx context.Context, record *model.TranscriptUpload) error
	FindByID(ctx context.Context, id uint) (*model.TranscriptUpload, error)
	ListByTopic(ctx context.Context, topic string) ([]model.TranscriptUpload, error)
	MarkIndexed(ctx context.Context, id uint, title string, chunkCount int) error
	UpdateStatus(ctx context.Context, id uint, status int) error
}

// uploadRepository 是 UploadRepository 接口的 GORM 实现。
type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

// Create 在数据库中创建一条新的上传记录。
func (r *uploadRepository) Create(ctx context.Context, record *model.TranscriptUpload) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByID 根据 ID 查找上传记录。
func (r *uploadRepository) FindByID(ctx context.Context, id uint) (*model.TranscriptUpload, error) {
	var record model.TranscriptUpload
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByTopic 返回某个话题下的上传记录，topic 为空时返回全部，按时间倒序。
func (r *uploadRepository) ListByTopic(ctx context.Context, topic string) ([]model.TranscriptUpload, error) {
	var records []model.TranscriptUpload
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if topic != "" {
		q = q.Where("topic = ?", topic)
	}
	err := q.Find(&records).Error
	return records, err
}

// MarkIndexed 记录入库完成后的标题与分块数。
func (r *uploadRepository) MarkIndexed(ctx context.Context, id uint, title string, chunkCount int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.TranscriptUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"title":       title,
		"chunk_count": chunkCount,
		"status":      model.UploadStatusIndexed,
		"indexed_at":  &now,
	}).Error
}

// UpdateStatus 更新指定上传记录的状态。
func (r *uploadRepository) UpdateStatus(ctx context.Context, id uint, status int) error {
	return r.db.WithContext(ctx).Model(&model.TranscriptUpload{}).Where("id = ?", id).Update("status", status).Error
}
