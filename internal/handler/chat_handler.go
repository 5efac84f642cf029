// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"dnc-chat-server/internal/cache"
	"dnc-chat-server/internal/service"
	"dnc-chat-server/pkg/response"
)

// ChatHandler 聊天历史请求处理器
// 实时收发走 WebSocket，这里只提供历史查询、已读标记和在线状态的 REST 入口
type ChatHandler struct {
	chatService *service.ChatService
	cache       *cache.RedisCache
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService, cache *cache.RedisCache) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		cache:       cache,
	}
}

// GetMessages 获取当前用户的消息历史
// @Summary 获取消息历史
// @Description 获取当前用户收发的全部消息，按时间升序
// @Tags 聊天
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]model.ChatMessage}
// @Router /api/chat/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "请先登录")
		return
	}

	messages, err := h.chatService.GetMessagesForUser(c.Request.Context(), userID.(int64))
	if err != nil {
		response.InternalError(c, "获取消息失败")
		return
	}

	response.Success(c, messages)
}

// MarkAsRead 标记消息已读
// @Summary 标记消息已读
// @Description 将指定消息标记为已读，只有接收者可以操作
// @Tags 聊天
// @Security Bearer
// @Produce json
// @Param id path int true "消息ID"
// @Success 200 {object} response.Response
// @Router /api/chat/messages/{id}/read [put]
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "请先登录")
		return
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的消息ID")
		return
	}

	message, _, err := h.chatService.MarkAsRead(c.Request.Context(), messageID, userID.(int64))
	if err != nil {
		if err == service.ErrMessageNotFound {
			response.MessageNotFound(c)
			return
		}
		response.InternalError(c, "标记已读失败")
		return
	}

	response.Success(c, message)
}

// GetOnlineUsers 获取在线用户列表
// @Summary 获取在线用户
// @Description 返回当前在线的用户ID列表
// @Tags 聊天
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]int64}
// @Router /api/chat/online [get]
func (h *ChatHandler) GetOnlineUsers(c *gin.Context) {
	ids, err := h.cache.GetOnlineUserIDs(c.Request.Context())
	if err != nil {
		response.InternalError(c, "获取在线用户失败")
		return
	}
	response.Success(c, ids)
}
