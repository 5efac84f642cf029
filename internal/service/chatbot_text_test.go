package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractReferenceLink(t *testing.T) {
	t.Run("带标签的链接优先", func(t *testing.T) {
		contexts := []string{
			"Xem thêm ở https://dnc.edu.vn/bare",
			"Khóa học Go. URL: https://dnc.edu.vn/go",
		}
		// 即使裸链接出现在更靠前的片段，也优先取带 "URL:" 标签的
		assert.Equal(t, "https://dnc.edu.vn/go", ExtractReferenceLink(contexts))
	})

	t.Run("没有标签时取第一个裸链接", func(t *testing.T) {
		contexts := []string{
			"Không có link ở đây",
			"Xem https://dnc.edu.vn/a và https://dnc.edu.vn/b",
		}
		assert.Equal(t, "https://dnc.edu.vn/a", ExtractReferenceLink(contexts))
	})

	t.Run("标签大小写不敏感", func(t *testing.T) {
		assert.Equal(t, "https://dnc.edu.vn/go", ExtractReferenceLink([]string{"url: https://dnc.edu.vn/go"}))
	})

	t.Run("没有链接返回空串", func(t *testing.T) {
		assert.Equal(t, "", ExtractReferenceLink([]string{"Khóa học Go", "Khóa học Python"}))
		assert.Equal(t, "", ExtractReferenceLink(nil))
	})
}

func TestStripReferenceLink(t *testing.T) {
	t.Run("摘除裸链接和行尾标点", func(t *testing.T) {
		got := StripReferenceLink("Danh sách khóa học: https://dnc.edu.vn/go", "https://dnc.edu.vn/go")
		assert.Equal(t, "Danh sách khóa học", got)
	})

	t.Run("摘除链接后清理引导词", func(t *testing.T) {
		got := StripReferenceLink("Xem tại https://dnc.edu.vn/go.", "https://dnc.edu.vn/go")
		assert.Equal(t, "", got)
	})

	t.Run("markdown 链接保留文字", func(t *testing.T) {
		got := StripReferenceLink("Tham khảo [Khóa học Go](https://dnc.edu.vn/go) nhé", "https://dnc.edu.vn/go")
		assert.Equal(t, "Tham khảo Khóa học Go nhé", got)
	})

	t.Run("不含链接的行原样保留", func(t *testing.T) {
		text := "Dòng một\nXem https://dnc.edu.vn/go\nDòng  ba  giữ nguyên"
		got := StripReferenceLink(text, "https://dnc.edu.vn/go")
		assert.Equal(t, "Dòng một\nXem\nDòng  ba  giữ nguyên", got)
	})

	t.Run("重复摘除不再变化", func(t *testing.T) {
		link := "https://dnc.edu.vn/go"
		once := StripReferenceLink("Danh sách: https://dnc.edu.vn/go\nChi tiết bên dưới.", link)
		twice := StripReferenceLink(once, link)
		assert.Equal(t, once, twice)
	})

	t.Run("空链接不处理", func(t *testing.T) {
		assert.Equal(t, "giữ nguyên", StripReferenceLink("giữ nguyên", ""))
	})
}

func TestRenderHTML(t *testing.T) {
	t.Run("普通行包成段落", func(t *testing.T) {
		got := RenderHTML("Dòng một\nDòng hai")
		assert.Equal(t, "<p>Dòng một</p><p>Dòng hai</p>", got)
	})

	t.Run("连续编号行合并为有序列表", func(t *testing.T) {
		got := RenderHTML("Các khóa học:\n1. Khóa học Go\n2. Khóa học Python\nĐăng ký ngay")
		assert.Equal(t, "<p>Các khóa học:</p><ol><li>Khóa học Go</li><li>Khóa học Python</li></ol><p>Đăng ký ngay</p>", got)
	})

	t.Run("空行结束列表", func(t *testing.T) {
		got := RenderHTML("1. Một\n\n2. Hai")
		assert.Equal(t, "<ol><li>Một</li></ol><ol><li>Hai</li></ol>", got)
	})

	t.Run("HTML 特殊字符转义", func(t *testing.T) {
		got := RenderHTML("a < b & <script>")
		assert.Equal(t, "<p>a &lt; b &amp; &lt;script&gt;</p>", got)
	})

	t.Run("空输入得空串", func(t *testing.T) {
		assert.Equal(t, "", RenderHTML(""))
		assert.Equal(t, "", RenderHTML("  \n  "))
	})
}
