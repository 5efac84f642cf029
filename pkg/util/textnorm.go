// Package util 提供通用工具函数
package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeMarks 去掉 NFD 分解后的组合符号（重音、声调等）
// Mn 类是 Unicode 的非空白组合标记，越南语的声调符号都属于这一类
var removeMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText 将文本归一化为小写的 ASCII 词流
// 处理步骤:
//  1. 转小写
//  2. 去掉变音符号（越南语声调等），đ 单独映射为 d
//  3. [a-z0-9 ] 之外的字符全部替换为空格
//  4. 合并连续空格
//
// 例如 "Khóa học Lập trình!" -> "khoa hoc lap trinh"
func NormalizeText(s string) string {
	s = strings.ToLower(s)

	// đ 在 NFD 下不会分解出组合符号，需要单独处理
	s = strings.ReplaceAll(s, "đ", "d")

	if folded, _, err := transform.String(removeMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	// Fields 会丢弃空串，顺便把连续空格收敛为单个空格
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize 将文本归一化后按空白切分为词
// 空白输入返回空切片
func Tokenize(s string) []string {
	return strings.Fields(NormalizeText(s))
}
