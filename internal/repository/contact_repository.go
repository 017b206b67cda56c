package repository

import (
	"context"

	"bents-assistant-go/internal/model"

	"gorm.io/gorm"
)

// ContactRepository 保存联系表单。
type ContactRepository interface {
	Create(ctx context.Context, contact *model.Contact) error
}

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository 创建一个新的 ContactRepository 实例。
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, contact *model.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}
