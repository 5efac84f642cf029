// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// ChatMessage 聊天消息模型
// 对应数据库表 chat_messages
// 既存储用户之间的点对点消息，也存储用户与机器人的对话
type ChatMessage struct {
	// ID 消息唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// SenderID 发送者用户 ID
	// 等于 ChatbotUserID (-1) 表示消息由机器人发出
	SenderID int64 `gorm:"index;not null" json:"sender_id"`

	// ReceiverID 接收者用户 ID
	// 等于 ChatbotUserID (-1) 表示消息发给机器人
	// SenderID 和 ReceiverID 不会同时为机器人
	ReceiverID int64 `gorm:"index;not null" json:"receiver_id"`

	// Content 消息内容
	// 机器人回复经过格式化，可能包含 HTML（<p>、<ol> 等结构标签）
	Content string `gorm:"type:text;not null" json:"content"`

	// ReferenceLink 参考链接，可选
	// 机器人回答课程相关问题时附带的课程链接
	ReferenceLink *string `gorm:"size:500" json:"reference_link,omitempty"`

	// IsRead 是否已读
	// 机器人的回复在创建时即标记为已读
	IsRead bool `gorm:"default:false" json:"is_read"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// UpdatedAt 更新时间（目前只有已读状态会变化）
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Sender 发送者（多对一关系）
	// 机器人消息没有对应的用户记录，预加载结果为 nil
	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`

	// Receiver 接收者（多对一关系）
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// IsFromChatbot 判断消息是否由机器人发出
func (m *ChatMessage) IsFromChatbot() bool {
	return m.SenderID == ChatbotUserID
}

// IsToChatbot 判断消息是否发给机器人
func (m *ChatMessage) IsToChatbot() bool {
	return m.ReceiverID == ChatbotUserID
}
