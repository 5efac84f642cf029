package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnc-chat-server/internal/model"
)

// fakeSnippetWriter 记录写入的片段存储替身
type fakeSnippetWriter struct {
	stored []model.Snippet
	err    error
}

func (f *fakeSnippetWriter) UpsertBatch(ctx context.Context, snippets []model.Snippet) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, snippets...)
	return nil
}

// fakeEmbedder 向量化替身
type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func TestIngestDocuments(t *testing.T) {
	writer := &fakeSnippetWriter{}
	svc := NewIngestService(writer, &fakeEmbedder{vector: []float64{0.1, 0.2}})

	batchID, count, err := svc.IngestDocuments(context.Background(), []string{
		"Khóa học Go cơ bản.\n\nKhóa học Python nâng cao.",
		"Hướng dẫn thanh toán học phí.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)
	assert.Equal(t, 3, count)
	require.Len(t, writer.stored, 3)

	// 同一批次共享批次ID，向量已序列化
	for _, sn := range writer.stored {
		assert.Equal(t, batchID, sn.BatchID)
		require.NotNil(t, sn.Embedding)
		assert.Equal(t, "[0.1,0.2]", *sn.Embedding)
	}
}

func TestIngestDocumentsEmbeddingFailureDegrades(t *testing.T) {
	writer := &fakeSnippetWriter{}
	svc := NewIngestService(writer, &fakeEmbedder{err: errors.New("quota exceeded")})

	// 向量化失败不阻塞导入，片段以无向量状态入库
	_, count, err := svc.IngestDocuments(context.Background(), []string{"Khóa học Go"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, writer.stored, 1)
	assert.Nil(t, writer.stored[0].Embedding)
}

func TestIngestDocumentsSplitsLongBlocks(t *testing.T) {
	writer := &fakeSnippetWriter{}
	svc := NewIngestService(writer, &fakeEmbedder{vector: []float64{0}})

	long := strings.Repeat("a", snippetMaxLen+10)
	_, count, err := svc.IngestDocuments(context.Background(), []string{long})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, writer.stored[0].Content, snippetMaxLen)
	assert.Len(t, writer.stored[1].Content, 10)
}

func TestSplitDocumentKeepsRuneBoundaries(t *testing.T) {
	// "ệ" 占 3 字节，1000 不是 3 的倍数，切点必须回退到字符边界
	long := strings.Repeat("ệ", 400)
	parts := splitDocument(long)

	require.Len(t, parts, 2)
	var rebuilt strings.Builder
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p), "part is not valid UTF-8: %q", p[:12])
		assert.LessOrEqual(t, len(p), snippetMaxLen)
		rebuilt.WriteString(p)
	}
	assert.Equal(t, long, rebuilt.String())
}

func TestIngestDocumentsNothingToIngest(t *testing.T) {
	svc := NewIngestService(&fakeSnippetWriter{}, &fakeEmbedder{})

	_, _, err := svc.IngestDocuments(context.Background(), []string{"", "  \n\n  "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNothingToIngest))
}

func TestIngestDocumentsStoreError(t *testing.T) {
	svc := NewIngestService(&fakeSnippetWriter{err: errors.New("deadlock")}, &fakeEmbedder{vector: []float64{0}})

	_, _, err := svc.IngestDocuments(context.Background(), []string{"Khóa học Go"})
	require.Error(t, err)
}
