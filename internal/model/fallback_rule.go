// Package model 定义了与数据库表对应的数据结构
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrMalformedKeywords 关键词字段无法解析
var ErrMalformedKeywords = errors.New("malformed keywords column")

// FallbackRule 兜底应答规则
// 对应数据库表 fallback_rules
// 当检索增强（RAG）流程不可用时，机器人按关键词匹配这些规则给出固定回复
// 规则由运营人员维护，核心流程只读
type FallbackRule struct {
	// ID 规则唯一标识，自增主键
	// ID 越大表示规则越新，置信度相同时优先选择更新的规则
	ID int64 `gorm:"primaryKey" json:"id"`

	// Keywords 关键词列表的原始存储
	// 历史数据格式不统一，可能是 JSON 数组（["a","b"]）也可能是逗号分隔
	// 读取时统一通过 KeywordList 解析，不要直接使用
	Keywords string `gorm:"type:text;not null" json:"keywords"`

	// Response 命中规则后返回的固定回复文本
	Response string `gorm:"type:text;not null" json:"response"`

	// Category 规则分类，如 "greeting"、"course"
	Category string `gorm:"size:50" json:"category"`

	// Confidence 置信度，取值 0.0-1.0，未指定时默认 1.0
	// 多条规则命中时取置信度最高的
	Confidence float64 `gorm:"default:1" json:"confidence"`

	// ReferenceLink 规则关联的参考链接，可选
	// 只在问题判定为课程相关时才附加到回复
	ReferenceLink *string `gorm:"size:500" json:"reference_link,omitempty"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (FallbackRule) TableName() string {
	return "fallback_rules"
}

// KeywordList 将 Keywords 原始字段解析为规范的字符串列表
// 先尝试 JSON 数组，失败后退回逗号分隔格式
// 空白项会被丢弃；解析不出任何关键词时返回 ErrMalformedKeywords，
// 调用方应记录日志并跳过该规则，而不是中断整个匹配流程
func (r *FallbackRule) KeywordList() ([]string, error) {
	raw := strings.TrimSpace(r.Keywords)
	if raw == "" {
		return nil, ErrMalformedKeywords
	}

	var keywords []string

	// 优先按 JSON 数组解析
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
			return nil, ErrMalformedKeywords
		}
	} else {
		keywords = strings.Split(raw, ",")
	}

	// 去掉空白项
	out := keywords[:0]
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	if len(out) == 0 {
		return nil, ErrMalformedKeywords
	}
	return out, nil
}
