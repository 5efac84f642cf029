// Package repository 提供数据访问层的实现
package repository

import (
	"context"

	"gorm.io/gorm"

	"dnc-chat-server/internal/model"
)

// SnippetRepository 检索语料数据访问层
// 支持批量导入和全量扫描，检索流程每次查询都会扫描全部片段
type SnippetRepository struct {
	db *gorm.DB
}

// NewSnippetRepository 创建 SnippetRepository 实例
func NewSnippetRepository(db *gorm.DB) *SnippetRepository {
	return &SnippetRepository{db: db}
}

// ScrollAll 全量读取语料片段
// 语料规模很小（课程介绍级别），线性扫描即可，limit 只是保护上限
// 参数:
//   - ctx: 上下文
//   - limit: 最多读取的条数，<= 0 时使用默认上限
//
// 返回:
//   - []model.Snippet: 片段列表，按 ID 正序
//   - error: 数据库错误
func (r *SnippetRepository) ScrollAll(ctx context.Context, limit int) ([]model.Snippet, error) {
	if limit <= 0 {
		limit = 1000
	}
	var snippets []model.Snippet
	err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Find(&snippets).Error
	return snippets, err
}

// UpsertBatch 批量写入语料片段
// 用于知识库导入，一次导入的片段共享同一个 BatchID
// 参数:
//   - ctx: 上下文
//   - snippets: 片段切片
//
// 返回:
//   - error: 数据库错误
func (r *SnippetRepository) UpsertBatch(ctx context.Context, snippets []model.Snippet) error {
	if len(snippets) == 0 {
		return nil
	}
	// CreateInBatches 分批插入，避免单次插入过多数据
	return r.db.WithContext(ctx).CreateInBatches(snippets, 100).Error
}

// Count 统计语料片段数量
func (r *SnippetRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Snippet{}).Count(&count).Error
	return count, err
}
