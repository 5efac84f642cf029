// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"dnc-chat-server/internal/service"
	"dnc-chat-server/pkg/response"
)

// SnippetHandler 知识片段请求处理器
// 提供知识库文档导入入口
type SnippetHandler struct {
	ingestService *service.IngestService
}

// NewSnippetHandler 创建 SnippetHandler 实例
func NewSnippetHandler(ingestService *service.IngestService) *SnippetHandler {
	return &SnippetHandler{
		ingestService: ingestService,
	}
}

// IngestRequest 文档导入请求
type IngestRequest struct {
	Documents []string `json:"documents" binding:"required,min=1"` // 原始文档列表
}

// IngestResponse 文档导入响应
type IngestResponse struct {
	BatchID      string `json:"batch_id"`      // 批次ID
	SnippetCount int    `json:"snippet_count"` // 入库片段数
}

// Ingest 导入知识文档
// @Summary 导入知识文档
// @Description 把文档切分成知识片段并写入知识库
// @Tags 知识库
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body IngestRequest true "文档列表"
// @Success 200 {object} response.Response{data=IngestResponse}
// @Router /api/snippets/ingest [post]
func (h *SnippetHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	batchID, count, err := h.ingestService.IngestDocuments(c.Request.Context(), req.Documents)
	if err != nil {
		if err == service.ErrNothingToIngest {
			response.BadRequest(c, "文档内容为空")
			return
		}
		response.ErrorWithCode(c, 500, response.CodeIngestFailed, "知识库导入失败")
		return
	}

	response.Success(c, &IngestResponse{
		BatchID:      batchID,
		SnippetCount: count,
	})
}
