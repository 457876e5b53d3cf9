package adapter

import (
	"encoding/json"
	"strings"
)

// Anthropic Messages API response, only the fields the review reads

type anthropicResponse struct {
	Content json.RawMessage `json:"content"`
	// Completion legacy /complete 形状
	Completion string `json:"completion"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// text 按顺序拼接所有带 text 的内容块，没有时退回 completion 字段
func (r *anthropicResponse) text() string {
	var sb strings.Builder

	var blocks []anthropicContentBlock
	if err := json.Unmarshal(r.Content, &blocks); err == nil {
		for _, b := range blocks {
			sb.WriteString(b.Text)
		}
	} else {
		var s string
		if err := json.Unmarshal(r.Content, &s); err == nil {
			sb.WriteString(s)
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return r.Completion
	}
	return sb.String()
}
