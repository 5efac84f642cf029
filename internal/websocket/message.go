// Package websocket 提供 WebSocket 通信功能
// 实现用户间聊天和机器人问答的实时双向通信
package websocket

import (
	"time"

	"dnc-chat-server/internal/model"
)

// 事件类型常量
const (
	// 客户端 → 服务端
	EventSendMessage    = "sendMessage"    // 发送用户间消息
	EventChatbotMessage = "chatbotMessage" // 向机器人提问
	EventMarkAsRead     = "markAsRead"     // 标记消息已读
	EventGetMessages    = "getMessages"    // 拉取历史消息

	// 服务端 → 客户端
	EventNewMessage  = "newMessage"  // 新消息送达
	EventMessageSent = "messageSent" // 消息发送成功回执
	EventMessageRead = "messageRead" // 消息已读通知
	EventMessages    = "messages"    // 历史消息列表
	EventError       = "error"       // 错误事件
)

// Event WebSocket 事件结构
// 所有事件都使用这个统一的结构
type Event struct {
	Type      string      `json:"type"`                 // 事件类型
	Payload   interface{} `json:"payload"`              // 事件内容
	Timestamp int64       `json:"timestamp"`            // 时间戳（毫秒）
	MessageID string      `json:"message_id,omitempty"` // 事件ID，用于追踪
}

// NewEvent 创建新事件
func NewEvent(eventType string, payload interface{}) *Event {
	return &Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewEventWithID 创建带事件ID的新事件
func NewEventWithID(eventType string, payload interface{}, messageID string) *Event {
	return &Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		MessageID: messageID,
	}
}

// ==================== Payload 类型定义 ====================

// SendMessagePayload 发送消息 Payload
type SendMessagePayload struct {
	ReceiverID int64  `json:"receiver_id"` // 接收者用户ID
	Content    string `json:"content"`     // 消息内容
}

// ChatbotMessagePayload 机器人提问 Payload
type ChatbotMessagePayload struct {
	Content string `json:"content"` // 提问内容
}

// MarkAsReadPayload 标记已读 Payload
type MarkAsReadPayload struct {
	MessageID int64 `json:"message_id"` // 消息ID
}

// MessageReadPayload 已读通知 Payload
type MessageReadPayload struct {
	MessageID int64 `json:"message_id"` // 消息ID
	ReaderID  int64 `json:"reader_id"`  // 读取者用户ID
	ReadAt    int64 `json:"read_at"`    // 读取时间（毫秒）
}

// MessagesPayload 历史消息列表 Payload
type MessagesPayload struct {
	Messages []*MessageView `json:"messages"` // 按时间升序
}

// ErrorPayload 错误事件 Payload
type ErrorPayload struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
}

// UserView 消息里携带的用户摘要
type UserView struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	FullName *string `json:"full_name,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// MessageView 推送给客户端的消息视图
type MessageView struct {
	ID            int64     `json:"id"`
	SenderID      int64     `json:"sender_id"`
	ReceiverID    int64     `json:"receiver_id"`
	Content       string    `json:"content"`
	ReferenceLink *string   `json:"reference_link,omitempty"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
	Sender        *UserView `json:"sender,omitempty"`
	Receiver      *UserView `json:"receiver,omitempty"`
}

// newMessageView 从消息模型构建视图
// 发送者和接收者视图由调用方补充
func newMessageView(m *model.ChatMessage) *MessageView {
	return &MessageView{
		ID:            m.ID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Content:       m.Content,
		ReferenceLink: m.ReferenceLink,
		IsRead:        m.IsRead,
		CreatedAt:     m.CreatedAt,
	}
}
