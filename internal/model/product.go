package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Product 对应 products 表。标签在库中是一个逗号分隔的字符串，
// 读写时通过 gorm 钩子与 Tags 切片互相转换。
type Product struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	TagText   string    `gorm:"column:tags;type:text" json:"-"`
	Tags      []string  `gorm:"-" json:"tags"`
	Link      string    `gorm:"type:varchar(1024)" json:"link"`
	ImageURL  *string   `gorm:"type:varchar(1024)" json:"image_url"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Product) TableName() string {
	return "products"
}

// BeforeSave 在写库前把 Tags 合并为逗号分隔的文本。
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.TagText = JoinTags(p.Tags)
	return nil
}

// AfterFind 在读库后把标签文本拆分为切片。
func (p *Product) AfterFind(tx *gorm.DB) error {
	p.Tags = SplitTags(p.TagText)
	return nil
}

// SplitTags 按逗号拆分标签，去掉空白和空项。
func SplitTags(text string) []string {
	tags := []string{}
	for _, t := range strings.Split(text, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JoinTags 把标签切片合并为逗号分隔的文本。
func JoinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ",")
}
