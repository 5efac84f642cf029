// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"dnc-chat-server/internal/model"
	"dnc-chat-server/pkg/util"
)

// FallbackRuleStore 兜底规则存储的抽象
// 由 repository.FallbackRuleRepository 实现
type FallbackRuleStore interface {
	GetAll(ctx context.Context) ([]model.FallbackRule, error)
}

// FallbackService 兜底应答器
// 检索流程不可用时，按关键词把用户消息匹配到固定回复
type FallbackService struct {
	store FallbackRuleStore
}

// NewFallbackService 创建 FallbackService 实例
func NewFallbackService(store FallbackRuleStore) *FallbackService {
	return &FallbackService{store: store}
}

// Match 在规则表中匹配用户消息
// 匹配规则:
//   - 消息只归一化一次
//   - 规则的任意一个关键词等于消息或是消息的子串即命中（任一命中即可，
//     不要求全部关键词命中；命中后停止扫描该规则的剩余关键词）
//   - 多条规则命中时，先比置信度（高者优先），再比 ID（大者优先，视为更新的规则）
//
// 关键词字段解析失败的规则记录日志后跳过，不影响整体匹配
// 参数:
//   - ctx: 上下文
//   - message: 用户原始消息
//
// 返回:
//   - *model.FallbackRule: 命中的规则，没有命中返回 nil
//   - error: 规则表读取失败
func (s *FallbackService) Match(ctx context.Context, message string) (*model.FallbackRule, error) {
	rules, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	normMessage := util.NormalizeText(message)
	if normMessage == "" {
		return nil, nil
	}

	var best *model.FallbackRule
	for i := range rules {
		rule := &rules[i]

		keywords, err := rule.KeywordList()
		if err != nil {
			if errors.Is(err, model.ErrMalformedKeywords) {
				log.Printf("Skipping fallback rule %d: malformed keywords: %q", rule.ID, rule.Keywords)
				continue
			}
			return nil, err
		}

		if !anyKeywordMatches(normMessage, keywords) {
			continue
		}

		if best == nil ||
			rule.Confidence > best.Confidence ||
			(rule.Confidence == best.Confidence && rule.ID > best.ID) {
			best = rule
		}
	}

	return best, nil
}

// anyKeywordMatches 检查任意关键词是否命中归一化后的消息
// 第一个命中的关键词即返回，不继续扫描
func anyKeywordMatches(normMessage string, keywords []string) bool {
	for _, kw := range keywords {
		normKw := util.NormalizeText(kw)
		if normKw == "" {
			continue
		}
		if normMessage == normKw || strings.Contains(normMessage, normKw) {
			return true
		}
	}
	return false
}
