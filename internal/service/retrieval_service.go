// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"dnc-chat-server/internal/model"
	"dnc-chat-server/pkg/util"
)

// ErrRetrievalUnavailable 语料扫描失败，检索不可用
// 调用方（ChatbotService）捕获后应转入兜底应答流程
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

const (
	// MaxRelevantSnippets 单次检索最多返回的片段数
	MaxRelevantSnippets = 5

	// snippetScanLimit 全量扫描的保护上限
	snippetScanLimit = 1000
)

// SnippetStore 语料存储的抽象
// 由 repository.SnippetRepository 实现
type SnippetStore interface {
	ScrollAll(ctx context.Context, limit int) ([]model.Snippet, error)
}

// RetrievalService 检索引擎
// 对全部语料做线性扫描 + 关键词重叠打分，返回最相关的若干片段
//
// 语料规模很小，刻意不做向量相似度检索：关键词重叠对"查课程名"这类
// 字面匹配的问题比语义检索更准，也没有语义漂移的问题
type RetrievalService struct {
	store SnippetStore
}

// NewRetrievalService 创建 RetrievalService 实例
func NewRetrievalService(store SnippetStore) *RetrievalService {
	return &RetrievalService{store: store}
}

// Score 计算查询词与片段文本的重叠得分
// 得分 = 查询中的不重复词里，作为子串出现在归一化片段文本中的个数
// 注意是子串包含而不是整词匹配（"cat" 会命中 "category"），
// 这是有意保留的行为，误报换召回
// 纯函数，无副作用
func (s *RetrievalService) Score(query, snippetText string) int {
	return scoreTokens(util.Tokenize(query), util.NormalizeText(snippetText))
}

// scoreTokens 在已归一化的输入上打分
// queryTokens 中的重复词只计一次
func scoreTokens(queryTokens []string, normSnippet string) int {
	seen := make(map[string]struct{}, len(queryTokens))
	score := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if strings.Contains(normSnippet, tok) {
			score++
		}
	}
	return score
}

// Retrieve 检索与查询最相关的语料片段
// 流程: 归一化查询 -> 全量扫描 -> 逐条打分 -> 去掉零分 -> 按分数稳定降序 -> 取前 K 条
// 稳定排序保证同分片段保持语料原始顺序
// 参数:
//   - ctx: 上下文
//   - query: 用户原始问题
//
// 返回:
//   - []model.Snippet: 相关片段，按相关度降序，最多 MaxRelevantSnippets 条
//   - error: 语料读取失败时返回 ErrRetrievalUnavailable（可用 errors.Is 判断）
func (s *RetrievalService) Retrieve(ctx context.Context, query string) ([]model.Snippet, error) {
	snippets, err := s.store.ScrollAll(ctx, snippetScanLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}
	if len(snippets) >= snippetScanLimit {
		// 语料条数达到扫描上限，超出部分不参与检索，召回会悄悄变差
		log.Printf("Snippet scan hit limit %d, corpus may be truncated", snippetScanLimit)
	}

	queryTokens := util.Tokenize(query)
	if len(queryTokens) == 0 {
		// 查询归一化后没有任何词，所有片段得分都是 0
		return nil, nil
	}

	type scoredSnippet struct {
		snippet model.Snippet
		score   int
	}

	scored := make([]scoredSnippet, 0, len(snippets))
	for _, sn := range snippets {
		sc := scoreTokens(queryTokens, util.NormalizeText(sn.Content))
		if sc == 0 {
			continue
		}
		scored = append(scored, scoredSnippet{snippet: sn, score: sc})
	}

	// SliceStable 保证同分片段保持原始顺序
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > MaxRelevantSnippets {
		scored = scored[:MaxRelevantSnippets]
	}

	result := make([]model.Snippet, 0, len(scored))
	for _, sc := range scored {
		result = append(result, sc.snippet)
	}
	return result, nil
}
