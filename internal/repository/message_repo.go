// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"dnc-chat-server/internal/model"
)

// MessageRepository 聊天消息数据访问层
// 负责消息相关的所有数据库操作
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建新消息
// 参数:
//   - ctx: 上下文
//   - message: 消息对象，ID 和 CreatedAt 会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) Create(ctx context.Context, message *model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 根据 ID 获取消息，并预加载发送者和接收者
// 机器人（ID 为 -1）没有用户记录，对应的关联字段为 nil
// 参数:
//   - ctx: 上下文
//   - id: 消息ID
//
// 返回:
//   - *model.ChatMessage: 消息对象，如果未找到返回 nil
//   - error: 数据库错误（不包括记录未找到）
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.ChatMessage, error) {
	var message model.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&message, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// GetForUser 获取某个用户的全部消息历史（发送和接收的都包含）
// 按创建时间正序排列（最早的在前），方便前端直接展示对话
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - []model.ChatMessage: 消息列表
//   - error: 数据库错误
func (r *MessageRepository) GetForUser(ctx context.Context, userID int64) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// MarkAsRead 将消息标记为已读
// 只翻转 is_read 字段，其他字段不变
// 参数:
//   - ctx: 上下文
//   - id: 消息ID
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) MarkAsRead(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// CountForUser 统计某个用户的消息数量
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - int64: 消息数量
//   - error: 数据库错误
func (r *MessageRepository) CountForUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}
