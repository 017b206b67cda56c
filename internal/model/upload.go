package model

import "time"

// 文稿上传记录的处理状态
const (
	UploadStatusPending = 0
	UploadStatusIndexed = 1
	UploadStatusFailed  = 2
)

// TranscriptUpload 定义了 transcript_uploads 表的 ORM 模型。
// 它记录了每个上传文稿的存储位置、所属话题和入库状态。
type TranscriptUpload struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ObjectName string     `gorm:"type:varchar(512);not null" json:"objectName"`
	FileName   string     `gorm:"type:varchar(255);not null" json:"fileName"`
	Topic      string     `gorm:"type:varchar(64);not null;index" json:"topic"`
	VideoURL   string     `gorm:"type:varchar(1024)" json:"videoUrl"`
	Title      string     `gorm:"type:varchar(255)" json:"title"`
	ChunkCount int        `gorm:"not null;default:0" json:"chunkCount"`
	Status     int        `gorm:"type:tinyint;not null;default:0" json:"status"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	IndexedAt  *time.Time `gorm:"default:null" json:"indexedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (TranscriptUpload) TableName() string {
	return "transcript_uploads"
}
