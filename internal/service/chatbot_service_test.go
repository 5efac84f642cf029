package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnc-chat-server/internal/model"
)

// fakeRetriever 检索引擎替身
type fakeRetriever struct {
	snippets []model.Snippet
	err      error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]model.Snippet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snippets, nil
}

// fakeAnswerGen 回答生成器替身
type fakeAnswerGen struct {
	text string
	err  error
}

func (f *fakeAnswerGen) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// fakeMatcher 兜底匹配器替身
type fakeMatcher struct {
	rule        *model.FallbackRule
	err         error
	lastMessage string
}

func (f *fakeMatcher) Match(ctx context.Context, message string) (*model.FallbackRule, error) {
	f.lastMessage = message
	if f.err != nil {
		return nil, f.err
	}
	return f.rule, nil
}

// fakeBotStore 记录持久化调用的消息存储替身
type fakeBotStore struct {
	created []*model.ChatMessage
	err     error
}

func (f *fakeBotStore) Create(ctx context.Context, message *model.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	message.ID = int64(len(f.created) + 100)
	f.created = append(f.created, message)
	return nil
}

func userQuestion(content string) *model.ChatMessage {
	return &model.ChatMessage{
		ID:         1,
		SenderID:   42,
		ReceiverID: model.ChatbotUserID,
		Content:    content,
	}
}

func TestProcessMessageRAGSuccess(t *testing.T) {
	store := &fakeBotStore{}
	svc := NewChatbotService(
		&fakeRetriever{snippets: []model.Snippet{{ID: 1, Content: "Khóa học Go cơ bản"}}},
		&fakeAnswerGen{text: "Hiện có khóa học Go cơ bản."},
		&fakeMatcher{},
		store,
	)

	reply, err := svc.ProcessMessage(context.Background(), userQuestion("Có khóa học nào không?"))
	require.NoError(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, model.ChatbotUserID, reply.SenderID)
	assert.Equal(t, int64(42), reply.ReceiverID)
	assert.True(t, reply.IsRead)
	assert.Equal(t, "<p>Hiện có khóa học Go cơ bản.</p>", reply.Content)
	assert.Nil(t, reply.ReferenceLink)
	require.Len(t, store.created, 1)
	assert.Same(t, reply, store.created[0])
}

func TestProcessMessageIgnoresBotOwnMessage(t *testing.T) {
	store := &fakeBotStore{}
	svc := NewChatbotService(&fakeRetriever{}, &fakeAnswerGen{}, &fakeMatcher{}, store)

	reply, err := svc.ProcessMessage(context.Background(), &model.ChatMessage{
		SenderID:   model.ChatbotUserID,
		ReceiverID: 42,
		Content:    "tự hỏi tự đáp",
	})
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Empty(t, store.created)
}

func TestProcessMessageRetrievalFailureFallsBack(t *testing.T) {
	matcher := &fakeMatcher{rule: &model.FallbackRule{
		ID: 1, Response: "Thông tin học phí có trên trang khóa học.", Confidence: 1.0,
	}}
	store := &fakeBotStore{}
	svc := NewChatbotService(
		&fakeRetriever{err: ErrRetrievalUnavailable},
		&fakeAnswerGen{text: "không dùng"},
		matcher,
		store,
	)

	reply, err := svc.ProcessMessage(context.Background(), userQuestion("Học phí bao nhiêu?"))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "<p>Thông tin học phí có trên trang khóa học.</p>", reply.Content)
	// 兜底匹配收到的是用户原始消息
	assert.Equal(t, "Học phí bao nhiêu?", matcher.lastMessage)
}

func TestProcessMessageGenerationFailureFallsBack(t *testing.T) {
	matcher := &fakeMatcher{rule: &model.FallbackRule{ID: 1, Response: "Xin chào!", Confidence: 1.0}}
	svc := NewChatbotService(
		&fakeRetriever{snippets: []model.Snippet{{ID: 1, Content: "Khóa học Go"}}},
		&fakeAnswerGen{err: ErrGenerationFailed},
		matcher,
		&fakeBotStore{},
	)

	reply, err := svc.ProcessMessage(context.Background(), userQuestion("chào bạn"))
	require.NoError(t, err)
	assert.Equal(t, "<p>Xin chào!</p>", reply.Content)
}

func TestProcessMessageEmptyGenerationFallsBack(t *testing.T) {
	matcher := &fakeMatcher{rule: &model.FallbackRule{ID: 1, Response: "Xin chào!", Confidence: 1.0}}
	svc := NewChatbotService(
		&fakeRetriever{snippets: []model.Snippet{{ID: 1, Content: "Khóa học Go"}}},
		&fakeAnswerGen{text: "   "},
		matcher,
		&fakeBotStore{},
	)

	reply, err := svc.ProcessMessage(context.Background(), userQuestion("chào bạn"))
	require.NoError(t, err)
	assert.Equal(t, "<p>Xin chào!</p>", reply.Content)
}

func TestProcessMessageNoFallbackHit(t *testing.T) {
	svc := NewChatbotService(
		&fakeRetriever{err: ErrRetrievalUnavailable},
		&fakeAnswerGen{},
		&fakeMatcher{rule: nil},
		&fakeBotStore{},
	)

	reply, err := svc.ProcessMessage(context.Background(), userQuestion("thời tiết hôm nay thế nào?"))
	require.NoError(t, err)
	assert.Equal(t, RenderHTML(DontUnderstandReply), reply.Content)
}

func TestProcessMessageMatcherErrorNeverPropagates(t *testing.T) {
	store := &fakeBotStore{}
	svc := NewChatbotService(
		&fakeRetriever{err: ErrRetrievalUnavailable},
		&fakeAnswerGen{},
		&fakeMatcher{err: errors.New("connection refused")},
		store,
	)

	// 应答流程的失败不会向上抛出，用户拿到固定错误文案
	reply, err := svc.ProcessMessage(context.Background(), userQuestion("Học phí bao nhiêu?"))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, RenderHTML(PipelineErrorReply), reply.Content)
	require.Len(t, store.created, 1)
}

func TestProcessMessagePersistFailure(t *testing.T) {
	svc := NewChatbotService(
		&fakeRetriever{snippets: []model.Snippet{{ID: 1, Content: "Khóa học Go"}}},
		&fakeAnswerGen{text: "Có khóa học Go."},
		&fakeMatcher{},
		&fakeBotStore{err: errors.New("deadlock")},
	)

	reply, err := svc.ProcessMessage(context.Background(), userQuestion("Có khóa học nào?"))
	require.Error(t, err)
	assert.Nil(t, reply)
}

func TestProcessMessageExtractsLinkForCourseQuestion(t *testing.T) {
	svc := NewChatbotService(
		&fakeRetriever{snippets: []model.Snippet{
			{ID: 1, Content: "Khóa học Go cơ bản. URL: https://dnc.edu.vn/go"},
		}},
		&fakeAnswerGen{text: "Danh sách khóa học: https://dnc.edu.vn/go"},
		&fakeMatcher{},
		&fakeBotStore{},
	)

	reply, err := svc.ProcessMessage(context.Background(), userQuestion("Có khóa học nào không?"))
	require.NoError(t, err)
	require.NotNil(t, reply.ReferenceLink)
	assert.Equal(t, "https://dnc.edu.vn/go", *reply.ReferenceLink)
	// 正文里的链接已摘除
	assert.Equal(t, "<p>Danh sách khóa học</p>", reply.Content)
}

func TestProcessMessageNoLinkForOffTopicQuestion(t *testing.T) {
	svc := NewChatbotService(
		&fakeRetriever{snippets: []model.Snippet{
			{ID: 1, Content: "Hướng dẫn thanh toán. URL: https://dnc.edu.vn/pay"},
		}},
		&fakeAnswerGen{text: "Bạn có thể thanh toán qua ngân hàng."},
		&fakeMatcher{},
		&fakeBotStore{},
	)

	// 问题与课程无关，不附加链接
	reply, err := svc.ProcessMessage(context.Background(), userQuestion("Thanh toán thế nào?"))
	require.NoError(t, err)
	assert.Nil(t, reply.ReferenceLink)
}

func TestProcessMessageFallbackLinkGating(t *testing.T) {
	link := "https://dnc.edu.vn/courses"
	newSvc := func() (*ChatbotService, *fakeBotStore) {
		store := &fakeBotStore{}
		return NewChatbotService(
			&fakeRetriever{err: ErrRetrievalUnavailable},
			&fakeAnswerGen{},
			&fakeMatcher{rule: &model.FallbackRule{
				ID: 1, Response: "Danh sách khóa học có trên trang chủ.", Confidence: 1.0, ReferenceLink: &link,
			}},
			store,
		), store
	}

	t.Run("课程相关的问题附加规则链接", func(t *testing.T) {
		svc, _ := newSvc()
		reply, err := svc.ProcessMessage(context.Background(), userQuestion("Cho xem các khóa học"))
		require.NoError(t, err)
		require.NotNil(t, reply.ReferenceLink)
		assert.Equal(t, link, *reply.ReferenceLink)
	})

	t.Run("无关问题不附加", func(t *testing.T) {
		svc, _ := newSvc()
		reply, err := svc.ProcessMessage(context.Background(), userQuestion("Xin chào"))
		require.NoError(t, err)
		assert.Nil(t, reply.ReferenceLink)
	})
}
