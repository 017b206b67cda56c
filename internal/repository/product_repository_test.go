package repository

import (
	"context"
	"testing"

	"bents-assistant-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// dryRunDB 返回一个只生成 SQL、不连接数据库的 gorm 实例。
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/bents",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% cotton\_rag`, escapeLike("100% cotton_rag"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

func TestTagQueryIsCaseInsensitiveSubstring(t *testing.T) {
	repo := &productRepository{db: dryRunDB(t)}

	stmt := repo.tagQuery(context.Background(), "Table Saw 101", 15).Find(&[]model.Product{}).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, "LOWER(tags) LIKE ?")
	assert.Contains(t, sql, "LIMIT")
	require.NotEmpty(t, stmt.Vars)
	assert.Equal(t, "%table saw 101%", stmt.Vars[0])
}

func TestFindByTagSubstringBlankTitle(t *testing.T) {
	repo := NewProductRepository(dryRunDB(t))
	products, err := repo.FindByTagSubstring(context.Background(), "  ", 15)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)
}
