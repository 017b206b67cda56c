// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"strings"

	"bents-assistant-go/internal/model"

	"gorm.io/gorm"
)

// ProductRepository 定义了产品目录的持久化操作。
type ProductRepository interface {
	List(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id string) (*model.Product, error)
	// FindByTagSubstring 返回标签文本中包含 title（不区分大小写）的产品。
	FindByTagSubstring(ctx context.Context, title string, limit int) ([]model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id string) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建一个新的 ProductRepository 实例。
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// List 按标题排序返回全部产品。
func (r *productRepository) List(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Order("title").Find(&products).Error
	return products, err
}

// FindByID 根据 ID 查找产品，未找到时返回 gorm.ErrRecordNotFound。
func (r *productRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// escapeLike 转义 LIKE 模式中的通配符，使 title 按字面匹配。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *productRepository) tagQuery(ctx context.Context, title string, limit int) *gorm.DB {
	pattern := "%" + escapeLike(strings.ToLower(title)) + "%"
	q := r.db.WithContext(ctx).Where("LOWER(tags) LIKE ?", pattern).Order("title")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// FindByTagSubstring 在标签文本上做不区分大小写的子串匹配。
func (r *productRepository) FindByTagSubstring(ctx context.Context, title string, limit int) ([]model.Product, error) {
	products := []model.Product{}
	if strings.TrimSpace(title) == "" {
		return products, nil
	}
	err := r.tagQuery(ctx, title, limit).Find(&products).Error
	return products, err
}

// Create 在数据库中创建产品记录。
func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update 更新产品的全部可编辑字段，记录不存在时返回 gorm.ErrRecordNotFound。
func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	product.TagText = model.JoinTags(product.Tags)
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", product.ID).Updates(map[string]interface{}{
		"title":     product.Title,
		"tags":      product.TagText,
		"link":      product.Link,
		"image_url": product.ImageURL,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除产品，记录不存在时返回 gorm.ErrRecordNotFound。
func (r *productRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
