package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dnc-chat-server/internal/model"
)

var (
	// ErrInvalidRecipient 不允许通过普通发送路径把消息发给机器人
	// 机器人消息必须走专用的 chatbotMessage 事件
	ErrInvalidRecipient = errors.New("cannot send a direct message to the chatbot")

	// ErrMessageNotFound 消息不存在
	ErrMessageNotFound = errors.New("message not found")
)

// MessageStore 聊天消息存储的抽象
// 由 repository.MessageRepository 实现
type MessageStore interface {
	Create(ctx context.Context, message *model.ChatMessage) error
	GetByID(ctx context.Context, id int64) (*model.ChatMessage, error)
	GetForUser(ctx context.Context, userID int64) ([]model.ChatMessage, error)
	MarkAsRead(ctx context.Context, id int64) error
}

// ChatService 聊天消息服务
type ChatService struct {
	messageRepo MessageStore
}

// NewChatService 创建 ChatService 实例
func NewChatService(messageRepo MessageStore) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
	}
}

// SendMessage 发送一条用户间消息并持久化
// 收件人为机器人时在持久化之前就拒绝，不会留下任何记录
// 参数:
//   - ctx: 上下文
//   - senderID: 发送者用户ID
//   - receiverID: 接收者用户ID
//   - content: 消息内容
//
// 返回:
//   - *model.ChatMessage: 已持久化的消息
//   - error: 错误信息
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (*model.ChatMessage, error) {
	if receiverID == model.ChatbotUserID {
		return nil, ErrInvalidRecipient
	}

	message := &model.ChatMessage{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		IsRead:     false,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return message, nil
}

// SaveChatbotQuestion 持久化一条发给机器人的用户提问
// 提问在机器人应答之前落库，保证历史记录里提问先于回复
func (s *ChatService) SaveChatbotQuestion(ctx context.Context, senderID int64, content string) (*model.ChatMessage, error) {
	message := &model.ChatMessage{
		SenderID:   senderID,
		ReceiverID: model.ChatbotUserID,
		Content:    content,
		IsRead:     true, // 机器人不会"读"消息，直接标记已读
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save chatbot question: %w", err)
	}
	return message, nil
}

// MarkAsRead 将消息标记为已读
// 只有消息的接收者才能标记，返回消息本身和标记时间
func (s *ChatService) MarkAsRead(ctx context.Context, messageID, readerID int64) (*model.ChatMessage, time.Time, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get message: %w", err)
	}
	if message == nil || message.ReceiverID != readerID {
		return nil, time.Time{}, ErrMessageNotFound
	}

	if !message.IsRead {
		if err := s.messageRepo.MarkAsRead(ctx, messageID); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to mark message as read: %w", err)
		}
		message.IsRead = true
	}
	return message, time.Now(), nil
}

// GetMessagesForUser 查询用户的全部消息（收发双向），按时间升序
func (s *ChatService) GetMessagesForUser(ctx context.Context, userID int64) ([]model.ChatMessage, error) {
	messages, err := s.messageRepo.GetForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}
