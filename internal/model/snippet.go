// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// Snippet 检索语料条目
// 对应数据库表 snippets
// 存储课程介绍等规范化文本片段，机器人回答问题时在这些片段上做关键词检索
type Snippet struct {
	// ID 片段唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// Content 片段文本
	// 可能包含 "URL: https://..." 形式的标注行，用于提取课程链接
	Content string `gorm:"type:text;not null" json:"content"`

	// Embedding 片段向量的 JSON 序列化结果
	// 导入时计算并保存；当前的检索流程只做关键词匹配，向量暂未参与打分
	Embedding *string `gorm:"type:text" json:"-"`

	// BatchID 导入批次标识，便于追踪一次导入产生的所有片段
	BatchID string `gorm:"size:64;index" json:"batch_id"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Snippet) TableName() string {
	return "snippets"
}
