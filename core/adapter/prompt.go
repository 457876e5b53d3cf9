package adapter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// BuildUserPrompt 所有 provider 共用同一个模板，保证评审看到的上下文一致
func BuildUserPrompt(question, answer string) string {
	return "User question:\n" + question + "\n\nHumata answer:\n" + answer
}

const maxSnippetRunes = 500

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// bodySnippet 去掉 HTML 标签、压缩空白并截断到 500 字符，只用于运维日志
func bodySnippet(body []byte) string {
	s := tagPattern.ReplaceAllString(string(body), " ")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxSnippetRunes {
		s = string([]rune(s)[:maxSnippetRunes])
	}
	return s
}
