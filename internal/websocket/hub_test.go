package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnc-chat-server/internal/model"
	"dnc-chat-server/internal/service"
	"dnc-chat-server/pkg/response"
)

// stubMessageStore 消息存储替身，同时充当机器人回复的存储
type stubMessageStore struct {
	createErr error
	nextID    int64
	created   []*model.ChatMessage
}

func (s *stubMessageStore) Create(ctx context.Context, message *model.ChatMessage) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	message.ID = s.nextID
	s.created = append(s.created, message)
	return nil
}

func (s *stubMessageStore) GetByID(ctx context.Context, id int64) (*model.ChatMessage, error) {
	for _, m := range s.created {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (s *stubMessageStore) GetForUser(ctx context.Context, userID int64) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range s.created {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubMessageStore) MarkAsRead(ctx context.Context, id int64) error {
	return nil
}

// stubRetriever 检索替身，固定返回不可用
type stubRetriever struct{}

func (s *stubRetriever) Retrieve(ctx context.Context, query string) ([]model.Snippet, error) {
	return nil, errors.New("index offline")
}

// stubGenerator 生成器替身，检索不可用时不会被调用
type stubGenerator struct{}

func (s *stubGenerator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	return "", errors.New("unexpected call")
}

// stubMatcher 兜底规则替身，任何提问都命中同一条规则
type stubMatcher struct {
	rule *model.FallbackRule
}

func (s *stubMatcher) Match(ctx context.Context, message string) (*model.FallbackRule, error) {
	return s.rule, nil
}

// stubUserDirectory 用户查询替身
type stubUserDirectory struct{}

func (s *stubUserDirectory) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return &model.User{ID: id, Username: "user"}, nil
}

// stubPresence 在线状态替身
type stubPresence struct{}

func (s *stubPresence) SetUserOnline(ctx context.Context, userID int64) error  { return nil }
func (s *stubPresence) SetUserOffline(ctx context.Context, userID int64) error { return nil }

// countingDelay 记录打字延迟被调用的次数
type countingDelay struct {
	calls int
}

func (d *countingDelay) delay(ctx context.Context) {
	d.calls++
}

func newTestHub(store *stubMessageStore, delay func(ctx context.Context)) *Hub {
	chatService := service.NewChatService(store)
	chatbotService := service.NewChatbotService(
		&stubRetriever{},
		&stubGenerator{},
		&stubMatcher{rule: &model.FallbackRule{ID: 1, Response: "Vui lòng liên hệ phòng đào tạo."}},
		store,
	)
	return NewHub(chatService, chatbotService, &stubUserDirectory{}, &stubPresence{}, "Trợ lý DNC", delay)
}

func newHubTestClient(userID int64) *Client {
	return &Client{
		userID: userID,
		send:   make(chan []byte, 8),
		connID: "hub-test",
	}
}

// recordedMessageEvent 回放发往客户端的消息事件
type recordedMessageEvent struct {
	Type      string      `json:"type"`
	Payload   MessageView `json:"payload"`
	MessageID string      `json:"message_id"`
}

func drainMessageEvents(t *testing.T, c *Client) []recordedMessageEvent {
	t.Helper()
	var events []recordedMessageEvent
	for {
		select {
		case data := <-c.send:
			var ev recordedMessageEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestHandleChatbotMessageEchoesQuestionBeforeReply(t *testing.T) {
	store := &stubMessageStore{}
	timer := &countingDelay{}
	hub := newTestHub(store, timer.delay)
	client := newHubTestClient(42)

	hub.handleChatbotMessage(client, NewEventWithID(EventChatbotMessage,
		&ChatbotMessagePayload{Content: "Học phí bao nhiêu?"}, "evt-1"))

	events := drainMessageEvents(t, client)
	require.Len(t, events, 2)

	// 提问回显在前，带原始事件ID
	echo := events[0]
	assert.Equal(t, EventNewMessage, echo.Type)
	assert.Equal(t, "evt-1", echo.MessageID)
	assert.Equal(t, int64(42), echo.Payload.SenderID)
	assert.Equal(t, "Học phí bao nhiêu?", echo.Payload.Content)

	// 机器人回复在后，经过一次打字延迟
	reply := events[1]
	assert.Equal(t, EventNewMessage, reply.Type)
	assert.Equal(t, model.ChatbotUserID, reply.Payload.SenderID)
	assert.Equal(t, service.RenderHTML("Vui lòng liên hệ phòng đào tạo."), reply.Payload.Content)
	assert.Equal(t, 1, timer.calls)

	// 提问和回复都已落库
	require.Len(t, store.created, 2)
	assert.Equal(t, int64(42), store.created[0].SenderID)
	assert.Equal(t, model.ChatbotUserID, store.created[1].SenderID)
}

func TestHandleChatbotMessageSaveFailureSendsBotError(t *testing.T) {
	store := &stubMessageStore{createErr: errors.New("deadlock")}
	timer := &countingDelay{}
	hub := newTestHub(store, timer.delay)
	client := newHubTestClient(42)

	hub.handleChatbotMessage(client, NewEvent(EventChatbotMessage,
		&ChatbotMessagePayload{Content: "Học phí bao nhiêu?"}))

	// 落库失败不发协议错误事件，而是延迟后推一条机器人口吻的错误回复
	events := drainMessageEvents(t, client)
	require.Len(t, events, 1)
	assert.Equal(t, EventNewMessage, events[0].Type)
	assert.Equal(t, model.ChatbotUserID, events[0].Payload.SenderID)
	assert.Equal(t, service.RenderHTML(service.PipelineErrorReply), events[0].Payload.Content)
	assert.Equal(t, 1, timer.calls)
	assert.Empty(t, store.created)
}

func TestHandleSendMessageRejectsChatbotRecipient(t *testing.T) {
	store := &stubMessageStore{}
	hub := newTestHub(store, nil)
	client := newHubTestClient(42)

	hub.handleSendMessage(client, NewEvent(EventSendMessage,
		&SendMessagePayload{ReceiverID: model.ChatbotUserID, Content: "xin chào"}))

	// 发给机器人的普通消息在持久化之前就被拒绝
	var raw []byte
	select {
	case raw = <-client.send:
	default:
		t.Fatal("expected an error event")
	}
	var ev struct {
		Type    string       `json:"type"`
		Payload ErrorPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, response.CodeInvalidRecipient, ev.Payload.Code)
	assert.Empty(t, store.created)
}
