// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"dnc-chat-server/internal/model"
	"dnc-chat-server/pkg/util"
)

// 机器人固定回复
const (
	// DontUnderstandReply 没有任何兜底规则命中时的固定回复
	DontUnderstandReply = "Xin lỗi, tôi chưa hiểu câu hỏi của bạn. Bạn có thể diễn đạt lại hoặc hỏi về các khóa học trên hệ thống nhé."

	// PipelineErrorReply 应答流程出现异常时的固定回复
	// 用户永远不会看到原始错误信息
	PipelineErrorReply = "Đã có lỗi xảy ra, vui lòng thử lại sau."
)

// courseKeywords 课程相关问题的判定关键词（已归一化）
// 问题命中其中任意一个才会在回复里附加参考链接，
// 避免闲聊类问题带出无关链接
var courseKeywords = []string{"khoa hoc", "bai hoc", "lop hoc", "course", "lesson"}

// SnippetRetriever 检索引擎的抽象
// 由 RetrievalService 实现
type SnippetRetriever interface {
	Retrieve(ctx context.Context, query string) ([]model.Snippet, error)
}

// AnswerGenerator 回答生成器的抽象
// 由 GenerationService 实现
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, contexts []string) (string, error)
}

// RuleMatcher 兜底规则匹配器的抽象
// 由 FallbackService 实现
type RuleMatcher interface {
	Match(ctx context.Context, message string) (*model.FallbackRule, error)
}

// BotMessageStore 机器人回复的持久化抽象
// 由 repository.MessageRepository 实现
type BotMessageStore interface {
	Create(ctx context.Context, message *model.ChatMessage) error
}

// answerKind 应答路径的标记
// 用显式的标记类型代替布尔标志位，让每个分支可以独立测试
type answerKind int

const (
	ragAnswered      answerKind = iota // 检索增强流程成功
	fallbackAnswered                   // 兜底规则应答（含"没听懂"）
	erroredAnswer                      // 流程异常，返回固定错误文案
)

// botAnswer 应答流水线的中间结果
type botAnswer struct {
	kind          answerKind
	text          string // 纯文本回复，持久化前会转成 HTML
	referenceLink string // 参考链接，可为空
}

// ChatbotService 聊天机器人编排器
// 对每条发给机器人的消息决定走检索增强（RAG）路径还是兜底路径，
// 对回复做链接提取和 HTML 格式化，最后持久化为机器人消息
type ChatbotService struct {
	retriever SnippetRetriever
	generator AnswerGenerator
	matcher   RuleMatcher
	messages  BotMessageStore
}

// NewChatbotService 创建 ChatbotService 实例
func NewChatbotService(
	retriever SnippetRetriever,
	generator AnswerGenerator,
	matcher RuleMatcher,
	messages BotMessageStore,
) *ChatbotService {
	return &ChatbotService{
		retriever: retriever,
		generator: generator,
		matcher:   matcher,
		messages:  messages,
	}
}

// ProcessMessage 处理一条发给机器人的用户消息
// 应答流程内部的任何失败都会被转换成固定错误文案，不会向上抛出；
// 只有机器人回复本身持久化失败时才返回 error，由网关兜底
//
// 机器人自己发出的消息直接返回 (nil, nil)，防止自问自答
// 参数:
//   - ctx: 上下文
//   - message: 用户消息（SenderID 为提问者，ReceiverID 为机器人）
//
// 返回:
//   - *model.ChatMessage: 已持久化的机器人回复，创建时即标记已读
//   - error: 仅在回复持久化失败时非 nil
func (s *ChatbotService) ProcessMessage(ctx context.Context, message *model.ChatMessage) (*model.ChatMessage, error) {
	if message.IsFromChatbot() {
		return nil, nil
	}

	answer := s.answer(ctx, message.Content)

	reply := &model.ChatMessage{
		SenderID:   model.ChatbotUserID,
		ReceiverID: message.SenderID,
		Content:    RenderHTML(answer.text),
		IsRead:     true, // 机器人回复创建时即已读
	}
	if answer.referenceLink != "" {
		reply.ReferenceLink = &answer.referenceLink
	}

	if err := s.messages.Create(ctx, reply); err != nil {
		return nil, fmt.Errorf("failed to persist bot reply: %w", err)
	}

	log.Printf("Chatbot answered: userID=%d, question=%q", message.SenderID, util.TruncateString(message.Content, 80))
	return reply, nil
}

// answer 执行应答流水线，返回纯文本结果
// 状态流转: RAG 尝试 -> (成功) ragAnswered
//                    -> (失败/空回答) 兜底匹配 -> (命中) fallbackAnswered
//                                            -> (未命中) fallbackAnswered + 固定"没听懂"
//                                            -> (匹配本身失败) erroredAnswer
func (s *ChatbotService) answer(ctx context.Context, question string) botAnswer {
	if result, ok := s.tryRAG(ctx, question); ok {
		return result
	}

	rule, err := s.matcher.Match(ctx, question)
	if err != nil {
		log.Printf("Fallback match failed: %v", err)
		return botAnswer{kind: erroredAnswer, text: PipelineErrorReply}
	}

	if rule == nil {
		return botAnswer{kind: fallbackAnswered, text: DontUnderstandReply}
	}

	result := botAnswer{kind: fallbackAnswered, text: rule.Response}
	// 规则自带的链接同样受课程相关性门控
	if isCourseRelated(question) && rule.ReferenceLink != nil && *rule.ReferenceLink != "" {
		result.referenceLink = *rule.ReferenceLink
	}
	return result
}

// tryRAG 尝试检索增强路径
// 检索失败、生成失败或生成结果为空都视为路径不可用，返回 ok=false
func (s *ChatbotService) tryRAG(ctx context.Context, question string) (botAnswer, bool) {
	snippets, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		log.Printf("Retrieval unavailable, falling back to rules: %v", err)
		return botAnswer{}, false
	}

	contexts := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		contexts = append(contexts, sn.Content)
	}

	text, err := s.generator.Generate(ctx, question, contexts)
	if err != nil {
		log.Printf("Generation failed, falling back to rules: %v", err)
		return botAnswer{}, false
	}
	if strings.TrimSpace(text) == "" {
		log.Printf("Generation returned empty text, falling back to rules")
		return botAnswer{}, false
	}

	result := botAnswer{kind: ragAnswered, text: text}

	// 链接提取只在问题课程相关且 RAG 成功时进行
	if isCourseRelated(question) {
		if link := ExtractReferenceLink(contexts); link != "" {
			result.referenceLink = link
			result.text = StripReferenceLink(result.text, link)
		}
	}
	return result, true
}

// isCourseRelated 判断问题是否与课程相关
// 归一化后包含任意课程关键词即视为相关
func isCourseRelated(question string) bool {
	norm := util.NormalizeText(question)
	for _, kw := range courseKeywords {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}
