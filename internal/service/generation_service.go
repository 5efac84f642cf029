// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrGenerationFailed 语言模型调用失败
// 调用方（ChatbotService）捕获后应转入兜底应答流程
var ErrGenerationFailed = errors.New("generation failed")

// NoInformationReply 没有检索到相关语料时的固定回复
// 语境为空时直接返回这句话，不调用模型，避免模型凭空编造
const NoInformationReply = "Xin lỗi, tôi không tìm thấy thông tin phù hợp với câu hỏi của bạn. Bạn có thể hỏi về các khóa học trên hệ thống DNC."

// GenerationService 回答生成器
// 把检索到的语料片段拼成提示词，交给语言模型生成回答
type GenerationService struct {
	generator TextGenerator
}

// NewGenerationService 创建 GenerationService 实例
func NewGenerationService(generator TextGenerator) *GenerationService {
	return &GenerationService{generator: generator}
}

// Generate 基于语境生成回答
// 语境为空时返回固定的"未找到信息"回复，不会调用语言模型
// 参数:
//   - ctx: 上下文
//   - query: 用户原始问题
//   - contexts: 检索到的语料片段文本，按相关度降序
//
// 返回:
//   - string: 生成的回答
//   - error: 模型调用失败时返回 ErrGenerationFailed（可用 errors.Is 判断）
func (s *GenerationService) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	if len(contexts) == 0 {
		return NoInformationReply, nil
	}

	prompt := buildPrompt(query, contexts)

	text, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return text, nil
}

// buildPrompt 构造提示词
// 要求模型用越南语、尽量只依据给定语境回答，并保持简洁
func buildPrompt(query string, contexts []string) string {
	var b strings.Builder

	b.WriteString("Bạn là trợ lý ảo của nền tảng học trực tuyến DNC. ")
	b.WriteString("Hãy trả lời bằng tiếng Việt, ngắn gọn, và chỉ dựa vào thông tin dưới đây nếu có thể.\n\n")
	b.WriteString("Thông tin tham khảo:\n")
	b.WriteString(strings.Join(contexts, "\n"))
	b.WriteString("\n\nCâu hỏi: ")
	b.WriteString(query)
	b.WriteString("\n\nTrả lời ngắn gọn:")

	return b.String()
}
