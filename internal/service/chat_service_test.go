package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnc-chat-server/internal/model"
)

// fakeMessageStore 内存消息存储
type fakeMessageStore struct {
	messages  map[int64]*model.ChatMessage
	createErr error
	nextID    int64
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[int64]*model.ChatMessage)}
}

func (f *fakeMessageStore) Create(ctx context.Context, message *model.ChatMessage) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	message.ID = f.nextID
	f.messages[message.ID] = message
	return nil
}

func (f *fakeMessageStore) GetByID(ctx context.Context, id int64) (*model.ChatMessage, error) {
	return f.messages[id], nil
}

func (f *fakeMessageStore) GetForUser(ctx context.Context, userID int64) ([]model.ChatMessage, error) {
	var result []model.ChatMessage
	for _, m := range f.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			result = append(result, *m)
		}
	}
	return result, nil
}

func (f *fakeMessageStore) MarkAsRead(ctx context.Context, id int64) error {
	if m, ok := f.messages[id]; ok {
		m.IsRead = true
	}
	return nil
}

func TestSendMessage(t *testing.T) {
	store := newFakeMessageStore()
	svc := NewChatService(store)

	message, err := svc.SendMessage(context.Background(), 1, 2, "chào bạn")
	require.NoError(t, err)
	assert.Equal(t, int64(1), message.SenderID)
	assert.Equal(t, int64(2), message.ReceiverID)
	assert.False(t, message.IsRead)
	assert.Len(t, store.messages, 1)
}

func TestSendMessageToChatbotRejected(t *testing.T) {
	store := newFakeMessageStore()
	svc := NewChatService(store)

	// 收件人是机器人时在持久化之前拒绝
	message, err := svc.SendMessage(context.Background(), 1, model.ChatbotUserID, "xin chào")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRecipient))
	assert.Nil(t, message)
	assert.Empty(t, store.messages)
}

func TestSaveChatbotQuestion(t *testing.T) {
	store := newFakeMessageStore()
	svc := NewChatService(store)

	question, err := svc.SaveChatbotQuestion(context.Background(), 42, "Có khóa học nào?")
	require.NoError(t, err)
	assert.Equal(t, model.ChatbotUserID, question.ReceiverID)
	assert.True(t, question.IsRead)
}

func TestMarkAsRead(t *testing.T) {
	store := newFakeMessageStore()
	svc := NewChatService(store)

	message, err := svc.SendMessage(context.Background(), 1, 2, "chào bạn")
	require.NoError(t, err)

	t.Run("接收者标记成功", func(t *testing.T) {
		marked, readAt, err := svc.MarkAsRead(context.Background(), message.ID, 2)
		require.NoError(t, err)
		assert.True(t, marked.IsRead)
		assert.False(t, readAt.IsZero())
	})

	t.Run("非接收者不能标记", func(t *testing.T) {
		_, _, err := svc.MarkAsRead(context.Background(), message.ID, 3)
		assert.True(t, errors.Is(err, ErrMessageNotFound))
	})

	t.Run("消息不存在", func(t *testing.T) {
		_, _, err := svc.MarkAsRead(context.Background(), 999, 2)
		assert.True(t, errors.Is(err, ErrMessageNotFound))
	})
}

func TestGetMessagesForUser(t *testing.T) {
	store := newFakeMessageStore()
	svc := NewChatService(store)

	_, err := svc.SendMessage(context.Background(), 1, 2, "một")
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), 2, 1, "hai")
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), 3, 4, "không liên quan")
	require.NoError(t, err)

	messages, err := svc.GetMessagesForUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}
