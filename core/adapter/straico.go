package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"review-gateway/core/rotation"
)

const (
	ProviderStraico        = "straico"
	DefaultStraicoEndpoint = "https://api.straico.com/v0/chat/completions"
)

// StraicoClient Straico 评审客户端，消息 content 为 text 块列表
type StraicoClient struct {
	baseClient
}

func NewStraicoClient(cfg ClientConfig) *StraicoClient {
	return &StraicoClient{
		baseClient: newBaseClient(ProviderStraico, cfg, []string{DefaultStraicoEndpoint}, 30*time.Second),
	}
}

func (c *StraicoClient) Name() string { return ProviderStraico }

func (c *StraicoClient) Review(ctx context.Context, pool rotation.KeyPool, req ReviewRequest) (string, error) {
	return c.review(ctx, pool, req, func(ctx context.Context, key string) (string, *ReviewError) {
		return c.send(ctx, key, c.buildPayload(req))
	})
}

func straicoMessage(role, text string) map[string]interface{} {
	return map[string]interface{}{
		"role": role,
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
	}
}

func (c *StraicoClient) buildPayload(req ReviewRequest) map[string]interface{} {
	messages := make([]map[string]interface{}, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, straicoMessage("system", system))
	}
	messages = append(messages, straicoMessage("user", BuildUserPrompt(req.Question, req.Answer)))

	return map[string]interface{}{
		"model":    req.Model,
		"messages": messages,
	}
}

// straicoText 按历史响应形状依次查找文本：
// choices[0].message.content, choices[0].text, answer, response, message, output
func straicoText(doc map[string]interface{}) string {
	if choices, ok := doc["choices"].([]interface{}); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]interface{}); ok {
			if msg, ok := choice["message"].(map[string]interface{}); ok {
				if text := textOf(msg["content"]); strings.TrimSpace(text) != "" {
					return text
				}
			}
			if text := textOf(choice["text"]); strings.TrimSpace(text) != "" {
				return text
			}
		}
	}

	for _, field := range []string{"answer", "response", "message", "output"} {
		if text := textOf(doc[field]); strings.TrimSpace(text) != "" {
			return text
		}
	}

	// 部分版本把整个结果包在 data 里
	if data, ok := doc["data"].(map[string]interface{}); ok {
		return straicoText(data)
	}
	return ""
}

// textOf 容忍字符串、内容块列表和带 text/content 字段的对象
func textOf(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		var sb strings.Builder
		for _, item := range val {
			sb.WriteString(textOf(item))
		}
		return sb.String()
	case map[string]interface{}:
		if text, ok := val["text"].(string); ok {
			return text
		}
		if content, ok := val["content"]; ok {
			return textOf(content)
		}
	}
	return ""
}

func (c *StraicoClient) send(ctx context.Context, key string, payload map[string]interface{}) (string, *ReviewError) {
	body, rerr := c.postJSON(ctx, payload, func(h http.Header) {
		h.Set("Authorization", "Bearer "+key)
	})
	if rerr != nil {
		return "", rerr
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", c.decodeError(err)
	}

	text := strings.TrimSpace(straicoText(doc))
	if text == "" {
		return "", c.emptyContent()
	}
	return text, nil
}
