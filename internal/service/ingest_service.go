package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"dnc-chat-server/internal/model"
	"dnc-chat-server/pkg/util"
)

// ErrNothingToIngest 提交的文档切分后没有任何有效片段
var ErrNothingToIngest = errors.New("no snippets to ingest")

// snippetMaxLen 单个知识片段的最大字节数
// 超长段落按该长度硬切分
const snippetMaxLen = 1000

// SnippetWriter 知识片段写入的抽象
// 由 repository.SnippetRepository 实现
type SnippetWriter interface {
	UpsertBatch(ctx context.Context, snippets []model.Snippet) error
}

// IngestService 知识片段导入服务
// 把原始文档切分成片段、计算向量，然后批量写入知识库
// 向量目前只存储不参与检索，为后续的向量检索预留
type IngestService struct {
	snippetRepo SnippetWriter
	embedder    Embedder
}

// NewIngestService 创建 IngestService 实例
func NewIngestService(snippetRepo SnippetWriter, embedder Embedder) *IngestService {
	return &IngestService{
		snippetRepo: snippetRepo,
		embedder:    embedder,
	}
}

// IngestDocuments 导入一批文档
// 每个文档按空行切分成片段，同一批次共享一个批次ID
// 单个片段的向量计算失败只记录日志，不影响片段入库
// 返回:
//   - string: 批次ID
//   - int: 入库的片段数
//   - error: 错误信息
func (s *IngestService) IngestDocuments(ctx context.Context, documents []string) (string, int, error) {
	batchID := util.GenerateUUID()

	var snippets []model.Snippet
	for _, doc := range documents {
		for _, part := range splitDocument(doc) {
			snippets = append(snippets, model.Snippet{
				Content:   part,
				Embedding: s.embed(ctx, part),
				BatchID:   batchID,
			})
		}
	}
	if len(snippets) == 0 {
		return "", 0, ErrNothingToIngest
	}

	if err := s.snippetRepo.UpsertBatch(ctx, snippets); err != nil {
		return "", 0, fmt.Errorf("failed to store snippets: %w", err)
	}

	log.Printf("Ingested %d snippets, batch %s", len(snippets), batchID)
	return batchID, len(snippets), nil
}

// embed 计算片段向量并序列化为 JSON
// 失败时返回 nil，片段以无向量状态入库
func (s *IngestService) embed(ctx context.Context, text string) *string {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("Embedding failed, storing snippet without vector: %v", err)
		return nil
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		log.Printf("Embedding serialization failed: %v", err)
		return nil
	}
	encoded := string(raw)
	return &encoded
}

// splitDocument 把文档按空行切分成片段
// 超过 snippetMaxLen 的段落继续按长度硬切，切点回退到字符边界避免截断多字节字符
func splitDocument(doc string) []string {
	var parts []string
	for _, block := range strings.Split(doc, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		for len(block) > snippetMaxLen {
			cut := snippetMaxLen
			for cut > 0 && !utf8.RuneStart(block[cut]) {
				cut--
			}
			parts = append(parts, block[:cut])
			block = block[cut:]
		}
		parts = append(parts, block)
	}
	return parts
}
