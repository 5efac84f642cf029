// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository 和 Cache
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dnc-chat-server/internal/config"
)

const (
	// DashScope 文本生成 Endpoint
	QwenTextEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	// DashScope 向量化 Endpoint
	QwenEmbeddingEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
)

// TextGenerator 文本生成能力的抽象
// 回答生成只依赖这个接口，方便在测试中替换为桩实现
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Embedder 文本向量化能力的抽象
// 只在语料导入时使用，查询流程不依赖向量
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// QwenClient 调用 DashScope 平台的 Qwen 模型
// 同时实现 TextGenerator 和 Embedder
type QwenClient struct {
	config *config.Config
	client *http.Client
}

// NewQwenClient 创建 QwenClient 实例
func NewQwenClient(cfg *config.Config) *QwenClient {
	return &QwenClient{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second, // 设置超时
		},
	}
}

// dashScopeMessage 对话消息结构
type dashScopeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// dashScopeTextRequest 文本生成请求结构
type dashScopeTextRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []dashScopeMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat string `json:"result_format"` // "message"
	} `json:"parameters"`
}

// dashScopeTextResponse 文本生成响应结构
type dashScopeTextResponse struct {
	Output struct {
		Choices []struct {
			Message dashScopeMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenerateText 调用 Qwen 生成一段文本
// 参数:
//   - ctx: 上下文
//   - prompt: 完整的提示词（包含语境和问题）
//
// 返回:
//   - string: 模型生成的文本
//   - error: 配置缺失、网络错误或平台返回的错误
func (c *QwenClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.config.AI.QwenAPIKey == "" {
		return "", errors.New("AI service not configured (missing API Key)")
	}

	// 1. 构造请求 Body
	textReq := dashScopeTextRequest{
		Model: c.config.AI.ChatModel,
	}
	textReq.Input.Messages = []dashScopeMessage{
		{Role: "user", Content: prompt},
	}
	textReq.Parameters.ResultFormat = "message"

	jsonData, err := json.Marshal(textReq)
	if err != nil {
		return "", err
	}

	// 2. 发送 HTTP 请求
	bodyBytes, err := c.post(ctx, QwenTextEndpoint, jsonData)
	if err != nil {
		return "", err
	}

	// 3. 解析响应
	var textResp dashScopeTextResponse
	if err := json.Unmarshal(bodyBytes, &textResp); err != nil {
		return "", fmt.Errorf("failed to parse AI response: %w", err)
	}

	if textResp.Code != "" {
		return "", fmt.Errorf("AI service error: %s - %s", textResp.Code, textResp.Message)
	}

	if len(textResp.Output.Choices) == 0 {
		return "", errors.New("AI returned no content")
	}

	return strings.TrimSpace(textResp.Output.Choices[0].Message.Content), nil
}

// dashScopeEmbeddingRequest 向量化请求结构
type dashScopeEmbeddingRequest struct {
	Model string `json:"model"`
	Input struct {
		Texts []string `json:"texts"`
	} `json:"input"`
}

// dashScopeEmbeddingResponse 向量化响应结构
type dashScopeEmbeddingResponse struct {
	Output struct {
		Embeddings []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Embed 计算文本的向量表示
// 参数:
//   - ctx: 上下文
//   - text: 待向量化的文本
//
// 返回:
//   - []float64: 向量
//   - error: 配置缺失、网络错误或平台返回的错误
func (c *QwenClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.config.AI.QwenAPIKey == "" {
		return nil, errors.New("AI service not configured (missing API Key)")
	}

	embReq := dashScopeEmbeddingRequest{
		Model: c.config.AI.EmbeddingModel,
	}
	embReq.Input.Texts = []string{text}

	jsonData, err := json.Marshal(embReq)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := c.post(ctx, QwenEmbeddingEndpoint, jsonData)
	if err != nil {
		return nil, err
	}

	var embResp dashScopeEmbeddingResponse
	if err := json.Unmarshal(bodyBytes, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	if embResp.Code != "" {
		return nil, fmt.Errorf("AI service error: %s - %s", embResp.Code, embResp.Message)
	}

	if len(embResp.Output.Embeddings) == 0 {
		return nil, errors.New("AI returned no embedding")
	}

	return embResp.Output.Embeddings[0].Embedding, nil
}

// post 发送一次带认证的 JSON 请求并返回响应体
func (c *QwenClient) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.AI.QwenAPIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call AI service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}
