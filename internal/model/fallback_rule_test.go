package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordList(t *testing.T) {
	tests := []struct {
		name     string
		keywords string
		want     []string
		wantErr  bool
	}{
		{
			name:     "JSON 数组",
			keywords: `["học phí","thanh toán"]`,
			want:     []string{"học phí", "thanh toán"},
		},
		{
			name:     "逗号分隔",
			keywords: "chào, hello , hi",
			want:     []string{"chào", "hello", "hi"},
		},
		{
			name:     "空白项被丢弃",
			keywords: `["học phí","","  "]`,
			want:     []string{"học phí"},
		},
		{
			name:     "JSON 不完整",
			keywords: `["học phí"`,
			wantErr:  true,
		},
		{
			name:     "空字段",
			keywords: "",
			wantErr:  true,
		},
		{
			name:     "只有分隔符",
			keywords: " , , ",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &FallbackRule{Keywords: tt.keywords}
			got, err := rule.KeywordList()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedKeywords))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatbotSentinel(t *testing.T) {
	question := &ChatMessage{SenderID: 42, ReceiverID: ChatbotUserID}
	assert.True(t, question.IsToChatbot())
	assert.False(t, question.IsFromChatbot())

	reply := &ChatMessage{SenderID: ChatbotUserID, ReceiverID: 42}
	assert.True(t, reply.IsFromChatbot())
	assert.False(t, reply.IsToChatbot())
}
