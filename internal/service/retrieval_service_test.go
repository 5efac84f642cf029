package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnc-chat-server/internal/model"
)

// fakeSnippetStore 内存语料存储
type fakeSnippetStore struct {
	snippets []model.Snippet
	err      error
}

func (f *fakeSnippetStore) ScrollAll(ctx context.Context, limit int) ([]model.Snippet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snippets, nil
}

func TestScore(t *testing.T) {
	svc := NewRetrievalService(&fakeSnippetStore{})

	t.Run("重叠词计数", func(t *testing.T) {
		assert.Equal(t, 2, svc.Score("khóa học lập trình", "Danh sách khóa học hiện có"))
	})

	t.Run("查询重复词只计一次", func(t *testing.T) {
		assert.Equal(t, 1, svc.Score("học học học", "khóa học"))
	})

	t.Run("子串也算命中", func(t *testing.T) {
		// "cat" 是 "category" 的子串，有意保留的误报
		assert.Equal(t, 1, svc.Score("cat", "category list"))
	})

	t.Run("声调不影响匹配", func(t *testing.T) {
		assert.Equal(t, 2, svc.Score("khoa hoc", "Khóa học Tiếng Anh"))
	})

	t.Run("无重叠得零分", func(t *testing.T) {
		assert.Equal(t, 0, svc.Score("học phí", "chứng chỉ"))
	})

	t.Run("空查询得零分", func(t *testing.T) {
		assert.Equal(t, 0, svc.Score("", "khóa học"))
	})
}

func TestRetrieve(t *testing.T) {
	snippets := []model.Snippet{
		{ID: 1, Content: "Thanh toán học phí qua ngân hàng"},
		{ID: 2, Content: "Khóa học Lập trình Go"},
		{ID: 3, Content: "Khóa học Lập trình Python cho người mới"},
		{ID: 4, Content: "Chứng chỉ hoàn thành"},
	}
	svc := NewRetrievalService(&fakeSnippetStore{snippets: snippets})

	t.Run("按相关度降序", func(t *testing.T) {
		result, err := svc.Retrieve(context.Background(), "khóa học lập trình python")
		require.NoError(t, err)
		require.Len(t, result, 3)
		// ID 3 命中 5 个词，ID 2 命中 4 个，ID 1 只命中 "học"
		assert.Equal(t, int64(3), result[0].ID)
		assert.Equal(t, int64(2), result[1].ID)
		assert.Equal(t, int64(1), result[2].ID)
	})

	t.Run("零分片段被丢弃", func(t *testing.T) {
		// "thanh" 作为子串命中 ID 4 的 "hoàn thành"
		result, err := svc.Retrieve(context.Background(), "thanh toán")
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, int64(1), result[0].ID)
		assert.Equal(t, int64(4), result[1].ID)
	})

	t.Run("同分保持语料原始顺序", func(t *testing.T) {
		result, err := svc.Retrieve(context.Background(), "lập trình")
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, int64(2), result[0].ID)
		assert.Equal(t, int64(3), result[1].ID)
	})

	t.Run("空查询返回空结果", func(t *testing.T) {
		result, err := svc.Retrieve(context.Background(), "???")
		require.NoError(t, err)
		assert.Empty(t, result)
	})
}

func TestRetrieveCapsResultCount(t *testing.T) {
	var snippets []model.Snippet
	for i := int64(1); i <= 8; i++ {
		snippets = append(snippets, model.Snippet{ID: i, Content: "khóa học"})
	}
	svc := NewRetrievalService(&fakeSnippetStore{snippets: snippets})

	result, err := svc.Retrieve(context.Background(), "khóa học")
	require.NoError(t, err)
	assert.Len(t, result, MaxRelevantSnippets)
	// 同分截断后保留最靠前的片段
	assert.Equal(t, int64(1), result[0].ID)
	assert.Equal(t, int64(5), result[4].ID)
}

func TestRetrieveAtScanLimit(t *testing.T) {
	// 语料条数达到扫描上限时检索仍然按分排序返回，上限命中只记日志
	snippets := make([]model.Snippet, snippetScanLimit)
	for i := range snippets {
		snippets[i] = model.Snippet{ID: int64(i + 1), Content: "chứng chỉ"}
	}
	snippets[snippetScanLimit-1].Content = "Khóa học Go"
	svc := NewRetrievalService(&fakeSnippetStore{snippets: snippets})

	result, err := svc.Retrieve(context.Background(), "khóa học")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, int64(snippetScanLimit), result[0].ID)
}

func TestRetrieveStoreError(t *testing.T) {
	svc := NewRetrievalService(&fakeSnippetStore{err: errors.New("connection refused")})

	_, err := svc.Retrieve(context.Background(), "khóa học")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetrievalUnavailable))
}
