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
	ProviderAnthropic = "anthropic"

	AnthropicVersion           = "2023-06-01"
	DefaultAnthropicEndpoint   = "https://api.anthropic.com/v1/messages"
	defaultAnthropicMaxTokens  = 1024
	thinkingAnthropicMaxTokens = 2048
	defaultThinkingBudget      = 1024
)

// AnthropicClient Claude Messages API 评审客户端
type AnthropicClient struct {
	baseClient
}

func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	return &AnthropicClient{
		baseClient: newBaseClient(ProviderAnthropic, cfg, []string{DefaultAnthropicEndpoint}, 60*time.Second),
	}
}

func (c *AnthropicClient) Name() string { return ProviderAnthropic }

// Review 开启 extended thinking 时，若首次请求失败会去掉 thinking 再试一次
func (c *AnthropicClient) Review(ctx context.Context, pool rotation.KeyPool, req ReviewRequest) (string, error) {
	return c.review(ctx, pool, req, func(ctx context.Context, key string) (string, *ReviewError) {
		payload := c.buildPayload(req)

		text, rerr := c.send(ctx, key, payload)
		if rerr == nil || !req.Options.ExtendedThinking {
			return text, rerr
		}
		// 传输失败和 Key 类错误与 thinking 参数无关，交给上层处理
		if rerr.IsTransport() || rotation.IsFailoverStatus(rerr.Status) {
			return "", rerr
		}

		c.logger.Warnf("Anthropic model %s rejected extended thinking (HTTP %d), retrying without it", req.Model, rerr.Status)
		delete(payload, "thinking")
		return c.send(ctx, key, payload)
	})
}

func (c *AnthropicClient) buildPayload(req ReviewRequest) map[string]interface{} {
	maxTokens := defaultAnthropicMaxTokens
	if req.Options.ExtendedThinking {
		maxTokens = thinkingAnthropicMaxTokens
	}
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}

	payload := map[string]interface{}{
		"model":      req.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{"role": "user", "content": BuildUserPrompt(req.Question, req.Answer)},
		},
	}
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		payload["system"] = system
	}

	if req.Options.ExtendedThinking {
		budget := req.Options.ThinkingBudget
		if budget < defaultThinkingBudget {
			budget = defaultThinkingBudget
		}
		// budget_tokens 必须小于 max_tokens
		if maxTokens <= budget {
			payload["max_tokens"] = budget + defaultAnthropicMaxTokens
		}
		payload["thinking"] = map[string]interface{}{
			"type":          "enabled",
			"budget_tokens": budget,
		}
	}

	return payload
}

func (c *AnthropicClient) send(ctx context.Context, key string, payload map[string]interface{}) (string, *ReviewError) {
	body, rerr := c.postJSON(ctx, payload, func(h http.Header) {
		h.Set("x-api-key", key)
		h.Set("anthropic-version", AnthropicVersion)
	})
	if rerr != nil {
		return "", rerr
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", c.decodeError(err)
	}

	text := strings.TrimSpace(resp.text())
	if text == "" {
		return "", c.emptyContent()
	}
	return text, nil
}
