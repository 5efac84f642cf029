// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"dnc-chat-server/internal/model"
	"dnc-chat-server/internal/service"
	"dnc-chat-server/pkg/response"
)

// UserDirectory 用户摘要查询的抽象
// 由 repository.UserRepository 实现
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// PresenceStore 在线状态镜像的抽象
// 由 cache.RedisCache 实现
type PresenceStore interface {
	SetUserOnline(ctx context.Context, userID int64) error
	SetUserOffline(ctx context.Context, userID int64) error
}

// Hub 是 WebSocket 连接的中心管理器
// 负责：
// 1. 管理所有客户端连接
// 2. 路由聊天事件
// 3. 同步在线状态
type Hub struct {
	// 连接注册表：userID -> 活跃连接
	registry *Registry

	// 注册通道
	register chan *Client

	// 注销通道
	unregister chan *Client

	// 依赖的服务
	chatService    *service.ChatService
	chatbotService *service.ChatbotService
	userRepo       UserDirectory
	cache          PresenceStore

	// 机器人显示名称
	botName string

	// typingDelay 机器人回复前的打字延迟
	// 可注入，测试时替换为空实现
	typingDelay func(ctx context.Context)
}

// NewHub 创建 Hub 实例
// typingDelay 为 nil 时机器人立即回复
func NewHub(
	chatService *service.ChatService,
	chatbotService *service.ChatbotService,
	userRepo UserDirectory,
	cache PresenceStore,
	botName string,
	typingDelay func(ctx context.Context),
) *Hub {
	if typingDelay == nil {
		typingDelay = func(ctx context.Context) {}
	}
	return &Hub{
		registry:       NewRegistry(),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		chatService:    chatService,
		chatbotService: chatbotService,
		userRepo:       userRepo,
		cache:          cache,
		botName:        botName,
		typingDelay:    typingDelay,
	}
}

// Run 启动 Hub 的主循环
// 应该在单独的 goroutine 中运行
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Register 注册客户端（供外部调用）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（供外部调用）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// registerClient 注册客户端
// 同一用户的旧连接会被替换并关闭
func (h *Hub) registerClient(client *Client) {
	if old := h.registry.Add(client); old != nil {
		old.Close()
		log.Printf("Replaced existing connection: userID=%d", client.userID)
	}

	// 更新 Redis 在线状态
	go func() {
		if err := h.cache.SetUserOnline(context.Background(), client.userID); err != nil {
			log.Printf("Failed to set user online: %v", err)
		}
	}()

	log.Printf("Client registered: userID=%d, connID=%s", client.userID, client.connID)
}

// unregisterClient 注销客户端
// 只有当前登记的连接才会触发离线状态更新
func (h *Hub) unregisterClient(client *Client) {
	if h.registry.Remove(client) {
		go func() {
			if err := h.cache.SetUserOffline(context.Background(), client.userID); err != nil {
				log.Printf("Failed to set user offline: %v", err)
			}
		}()
		log.Printf("Client unregistered: userID=%d", client.userID)
	}

	client.Close()
}

// IsUserConnected 检查用户是否在线
func (h *Hub) IsUserConnected(userID int64) bool {
	_, exists := h.registry.Get(userID)
	return exists
}

// OnlineUserIDs 返回所有在线用户ID
func (h *Hub) OnlineUserIDs() []int64 {
	return h.registry.OnlineUserIDs()
}

// deliver 向指定用户的活跃连接推送事件
// 用户不在线时静默丢弃，离线消息通过历史接口补齐
func (h *Hub) deliver(userID int64, event *Event) bool {
	client, exists := h.registry.Get(userID)
	if !exists {
		return false
	}
	client.SendEvent(event)
	return true
}

// decodePayload 解析事件 Payload 到具体类型
func decodePayload(event *Event, out interface{}) error {
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// sendError 向客户端发送错误事件
func sendError(client *Client, code int, message string) {
	client.SendEvent(NewEvent(EventError, &ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// handleSendMessage 处理用户间消息发送
func (h *Hub) handleSendMessage(client *Client, event *Event) {
	var payload SendMessagePayload
	if err := decodePayload(event, &payload); err != nil {
		log.Printf("Invalid sendMessage payload: %v", err)
		sendError(client, response.CodeBadRequest, "Dữ liệu không hợp lệ")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		sendError(client, response.CodeBadRequest, "Nội dung tin nhắn không được để trống")
		return
	}

	ctx := context.Background()

	message, err := h.chatService.SendMessage(ctx, client.userID, payload.ReceiverID, payload.Content)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRecipient) {
			sendError(client, response.CodeInvalidRecipient, "Không thể gửi tin nhắn trực tiếp cho trợ lý")
			return
		}
		log.Printf("Failed to send message: %v", err)
		sendError(client, response.CodeSendFailed, "Gửi tin nhắn thất bại")
		return
	}

	view := h.messageView(ctx, message)

	// 先给发送者回执，再投递给接收者
	client.SendEvent(NewEventWithID(EventMessageSent, view, event.MessageID))
	h.deliver(message.ReceiverID, NewEvent(EventNewMessage, view))
}

// handleChatbotMessage 处理机器人提问
// 提问先落库并回显给提问者，回复经过打字延迟后推送，
// 保证客户端看到"提问在前、回复在后"
func (h *Hub) handleChatbotMessage(client *Client, event *Event) {
	var payload ChatbotMessagePayload
	if err := decodePayload(event, &payload); err != nil {
		log.Printf("Invalid chatbotMessage payload: %v", err)
		sendError(client, response.CodeBadRequest, "Dữ liệu không hợp lệ")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		sendError(client, response.CodeBadRequest, "Nội dung câu hỏi không được để trống")
		return
	}

	ctx := context.Background()

	// 1. 保存提问
	// 落库失败同样以机器人的口吻回复，机器人对话里不暴露协议层错误
	question, err := h.chatService.SaveChatbotQuestion(ctx, client.userID, payload.Content)
	if err != nil {
		log.Printf("Failed to save chatbot question: %v", err)
		h.typingDelay(ctx)
		client.SendEvent(NewEvent(EventNewMessage, h.syntheticBotReply(client.userID)))
		return
	}

	// 2. 回显提问
	client.SendEvent(NewEventWithID(EventNewMessage, h.messageView(ctx, question), event.MessageID))

	// 3. 生成并推送回复
	reply, err := h.chatbotService.ProcessMessage(ctx, question)
	if err != nil {
		// 回复持久化失败，推送一条未落库的固定错误回复
		log.Printf("Chatbot reply failed: %v", err)
		h.typingDelay(ctx)
		client.SendEvent(NewEvent(EventNewMessage, h.syntheticBotReply(client.userID)))
		return
	}
	if reply == nil {
		return
	}

	h.typingDelay(ctx)
	client.SendEvent(NewEvent(EventNewMessage, h.messageView(ctx, reply)))
}

// handleMarkAsRead 处理消息已读标记
func (h *Hub) handleMarkAsRead(client *Client, event *Event) {
	var payload MarkAsReadPayload
	if err := decodePayload(event, &payload); err != nil {
		log.Printf("Invalid markAsRead payload: %v", err)
		sendError(client, response.CodeBadRequest, "Dữ liệu không hợp lệ")
		return
	}

	ctx := context.Background()

	message, readAt, err := h.chatService.MarkAsRead(ctx, payload.MessageID, client.userID)
	if err != nil {
		if errors.Is(err, service.ErrMessageNotFound) {
			sendError(client, response.CodeMessageNotFound, "Tin nhắn không tồn tại")
			return
		}
		log.Printf("Failed to mark message as read: %v", err)
		sendError(client, response.CodeInternalError, "Không thể đánh dấu đã đọc")
		return
	}

	readEvent := NewEventWithID(EventMessageRead, &MessageReadPayload{
		MessageID: message.ID,
		ReaderID:  client.userID,
		ReadAt:    readAt.UnixMilli(),
	}, event.MessageID)

	// 回执读取者，并通知原发送者
	client.SendEvent(readEvent)
	if message.SenderID != client.userID {
		h.deliver(message.SenderID, readEvent)
	}
}

// handleGetMessages 处理历史消息拉取
func (h *Hub) handleGetMessages(client *Client, event *Event) {
	ctx := context.Background()

	messages, err := h.chatService.GetMessagesForUser(ctx, client.userID)
	if err != nil {
		log.Printf("Failed to get messages: %v", err)
		sendError(client, response.CodeInternalError, "Không thể tải tin nhắn")
		return
	}

	views := make([]*MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, h.messageView(ctx, &messages[i]))
	}

	client.SendEvent(NewEventWithID(EventMessages, &MessagesPayload{Messages: views}, event.MessageID))
}

// messageView 构建消息视图，补充收发双方的用户摘要
func (h *Hub) messageView(ctx context.Context, m *model.ChatMessage) *MessageView {
	view := newMessageView(m)
	view.Sender = h.userView(ctx, m.SenderID)
	view.Receiver = h.userView(ctx, m.ReceiverID)
	return view
}

// userView 构建用户摘要
// 机器人没有用户记录，返回固定的虚拟用户
func (h *Hub) userView(ctx context.Context, userID int64) *UserView {
	if userID == model.ChatbotUserID {
		botName := h.botName
		return &UserView{
			ID:       model.ChatbotUserID,
			Username: "dnc_bot",
			FullName: &botName,
		}
	}

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil {
		return &UserView{ID: userID}
	}
	return &UserView{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Avatar:   user.Avatar,
	}
}

// syntheticBotReply 构建一条未落库的机器人错误回复视图
func (h *Hub) syntheticBotReply(receiverID int64) *MessageView {
	return &MessageView{
		SenderID:   model.ChatbotUserID,
		ReceiverID: receiverID,
		Content:    service.RenderHTML(service.PipelineErrorReply),
		IsRead:     true,
		Sender:     h.userView(context.Background(), model.ChatbotUserID),
	}
}
