package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"review-gateway/core/rotation"
	"review-gateway/models"
)

const (
	ProviderOpenRouter        = "openrouter"
	DefaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"
)

// OpenRouterClient OpenAI 兼容的 chat/completions 评审客户端
type OpenRouterClient struct {
	baseClient
	siteURL  string
	siteName string
}

// NewOpenRouterClient siteURL/siteName 通过 HTTP-Referer 和 X-Title 标识调用站点
func NewOpenRouterClient(cfg ClientConfig, siteURL, siteName string) *OpenRouterClient {
	return &OpenRouterClient{
		baseClient: newBaseClient(ProviderOpenRouter, cfg, []string{DefaultOpenRouterEndpoint}, 60*time.Second),
		siteURL:    strings.TrimSpace(siteURL),
		siteName:   strings.TrimSpace(siteName),
	}
}

func (c *OpenRouterClient) Name() string { return ProviderOpenRouter }

func (c *OpenRouterClient) Review(ctx context.Context, pool rotation.KeyPool, req ReviewRequest) (string, error) {
	return c.review(ctx, pool, req, func(ctx context.Context, key string) (string, *ReviewError) {
		return c.send(ctx, key, c.buildPayload(req))
	})
}

func (c *OpenRouterClient) buildPayload(req ReviewRequest) map[string]interface{} {
	messages := make([]models.ChatMessage, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, models.ChatMessage{Role: "user", Content: BuildUserPrompt(req.Question, req.Answer)})

	return map[string]interface{}{
		"model":    req.Model,
		"messages": messages,
	}
}

type openRouterResponse struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
		Text    string             `json:"text"`
	} `json:"choices"`
}

// text 优先 choices[0].message.content，退回 choices[0].text
func (r *openRouterResponse) text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	choice := r.Choices[0]
	if content := choice.Message.StringContent(); strings.TrimSpace(content) != "" {
		return content
	}
	return choice.Text
}

func (c *OpenRouterClient) send(ctx context.Context, key string, payload map[string]interface{}) (string, *ReviewError) {
	body, rerr := c.postJSON(ctx, payload, func(h http.Header) {
		h.Set("Authorization", "Bearer "+key)
		if c.siteURL != "" {
			h.Set("HTTP-Referer", c.siteURL)
		}
		if c.siteName != "" {
			h.Set("X-Title", c.siteName)
		}
	})
	if rerr != nil {
		return "", rerr
	}

	var resp openRouterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", c.decodeError(err)
	}

	text := strings.TrimSpace(resp.text())
	if text == "" {
		return "", c.emptyContent()
	}
	return text, nil
}
