package service

import (
	"html"
	"regexp"
	"strings"
)

var (
	// labeledURLRe 匹配知识片段里带 "URL:" 标签的链接
	labeledURLRe = regexp.MustCompile(`(?i)URL:\s*(https?://[^\s<>"']+)`)

	// bareURLRe 匹配裸链接
	bareURLRe = regexp.MustCompile(`https?://[^\s<>"']+`)

	// urlLabelRe 匹配残留的 "URL:" 标签
	urlLabelRe = regexp.MustCompile(`(?i)\s*\bURL:\s*`)

	// orderedItemRe 匹配 "1. xxx" 形式的编号行
	orderedItemRe = regexp.MustCompile(`^\d+\.\s+(.*)$`)
)

// linkLeadIns 链接前常见的引导词，链接摘除后一并清理
// 按长度降序排列，保证优先匹配最长短语
var linkLeadIns = []string{
	"theo đường dẫn",
	"truy cập",
	"xem tại",
	"visit",
	"tại",
	"at",
	"ở",
}

// ExtractReferenceLink 从检索上下文中提取参考链接
// 两遍扫描: 先在所有片段里找带 "URL:" 标签的链接，
// 没有再找第一个裸链接，取最先出现者
func ExtractReferenceLink(contexts []string) string {
	for _, c := range contexts {
		if m := labeledURLRe.FindStringSubmatch(c); m != nil {
			return m[1]
		}
	}
	for _, c := range contexts {
		if m := bareURLRe.FindString(c); m != "" {
			return m
		}
	}
	return ""
}

// StripReferenceLink 从回复正文中摘除指定链接
// 链接已经单独放进 ReferenceLink 字段，正文里不再重复出现
//
// 只改写包含该链接的行，其余行原样保留，
// 因此对已摘除过的文本再次调用不会产生变化
func StripReferenceLink(text, link string) string {
	if text == "" || link == "" {
		return text
	}

	// markdown 形式 [文字](链接) 只保留文字
	mdRe := regexp.MustCompile(`\[([^\]]*)\]\(\s*` + regexp.QuoteMeta(link) + `\s*\)`)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !strings.Contains(line, link) {
			continue
		}
		line = mdRe.ReplaceAllString(line, "$1")
		line = strings.ReplaceAll(line, link, "")
		line = urlLabelRe.ReplaceAllString(line, " ")
		line = strings.Join(strings.Fields(line), " ")
		lines[i] = trimDanglingLeadIn(line)
	}
	return strings.Join(lines, "\n")
}

// trimDanglingLeadIn 清理链接摘除后行尾残留的引导词和标点
// 反复收敛直到不再变化
func trimDanglingLeadIn(line string) string {
	for {
		before := line
		line = strings.TrimRight(line, " \t")
		line = strings.TrimRight(line, ".,:;!?-–—(")
		line = strings.TrimRight(line, " \t")

		lower := strings.ToLower(line)
		for _, lead := range linkLeadIns {
			if !strings.HasSuffix(lower, lead) {
				continue
			}
			cut := len(line) - len(lead)
			// 要求词边界，避免误伤 "chat" 这类以引导词结尾的单词
			if cut == 0 || strings.HasSuffix(line[:cut], " ") {
				line = line[:cut]
				break
			}
		}

		if line == before {
			return line
		}
	}
}

// RenderHTML 把纯文本回复转成最小化的 HTML
// 连续的编号行合并为 <ol><li>，其余非空行包成 <p>，
// 文本内容统一做 HTML 转义
func RenderHTML(text string) string {
	var b strings.Builder
	inList := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if inList {
				b.WriteString("</ol>")
				inList = false
			}
			continue
		}

		if m := orderedItemRe.FindStringSubmatch(line); m != nil {
			if !inList {
				b.WriteString("<ol>")
				inList = true
			}
			b.WriteString("<li>")
			b.WriteString(html.EscapeString(m[1]))
			b.WriteString("</li>")
			continue
		}

		if inList {
			b.WriteString("</ol>")
			inList = false
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}

	if inList {
		b.WriteString("</ol>")
	}
	return b.String()
}
