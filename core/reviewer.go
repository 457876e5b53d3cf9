package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"review-gateway/core/adapter"
	"review-gateway/core/rotation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownProvider = errors.New("unknown review provider")
	ErrReviewDisabled  = errors.New("review is disabled")
)

// ReviewResult 一次成功评审的结果
type ReviewResult struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

// ReviewOrchestrator 按配置选择 provider、组装 Key 池并调用客户端
//
// 返回的错误要么是 ErrUnknownProvider/ErrReviewDisabled，
// 要么是 *adapter.ReviewError；上游原文不会出现在 SafeMessage 中。
type ReviewOrchestrator struct {
	config  ConfigProvider
	secrets SecretProvider
	logger  *logrus.Logger
	clients map[string]adapter.ReviewClient
}

func NewReviewOrchestrator(config ConfigProvider, secrets SecretProvider, logger *logrus.Logger, clients ...adapter.ReviewClient) *ReviewOrchestrator {
	if secrets == nil {
		secrets = NewNoOpSecretProvider()
	}
	o := &ReviewOrchestrator{
		config:  config,
		secrets: secrets,
		logger:  logger,
		clients: make(map[string]adapter.ReviewClient, len(clients)),
	}
	for _, c := range clients {
		o.clients[c.Name()] = c
	}
	return o
}

// Provider 当前配置的 provider，未配置时为 "none"
func (o *ReviewOrchestrator) Provider() string {
	p := strings.ToLower(strings.TrimSpace(o.config.String(OptReviewProvider)))
	if p == "" {
		return ProviderNone
	}
	return p
}

// Review 执行一次评审；override 非空时覆盖配置的 provider
func (o *ReviewOrchestrator) Review(ctx context.Context, question, answer, override string) (*ReviewResult, error) {
	provider := strings.ToLower(strings.TrimSpace(override))
	if provider == "" {
		provider = o.Provider()
	}
	if provider == ProviderNone {
		return nil, ErrReviewDisabled
	}

	client, ok := o.clients[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	id := uuid.NewString()
	log := o.logger.WithFields(logrus.Fields{
		"request_id": id,
		"provider":   provider,
	})

	pool := o.KeyPool(provider)
	req := o.buildRequest(provider, question, answer)

	start := time.Now()
	text, err := client.Review(ctx, pool, req)
	if err != nil {
		var rerr *adapter.ReviewError
		if errors.As(err, &rerr) {
			log.WithFields(logrus.Fields{
				"kind":   rerr.Kind,
				"status": rerr.Status,
			}).Errorf("❌ Review failed after %v: %v", time.Since(start), rerr.Cause)
		}
		return nil, err
	}

	log.Infof("✅ Review completed in %v (model=%s, keys=%d)", time.Since(start), req.Model, pool.Len())
	return &ReviewResult{ID: id, Provider: provider, Text: text}, nil
}

// KeyPool 规范化 -> 解密 -> 再规范化
func (o *ReviewOrchestrator) KeyPool(provider string) rotation.KeyPool {
	raw, _ := o.config.Value(KeyPoolOption(provider))
	keys := rotation.NormalizeKeys(raw)

	decrypted, err := DecryptKeys(o.secrets, keys)
	if err != nil {
		o.logger.Warnf("⚠️ %s key pool: %v", provider, err)
	}

	name := strings.TrimSpace(o.config.String(PoolNameOption(provider)))
	if name == "" {
		name = provider
	}
	return rotation.NewKeyPool(name, decrypted)
}

func (o *ReviewOrchestrator) buildRequest(provider, question, answer string) adapter.ReviewRequest {
	req := adapter.ReviewRequest{
		Model:        strings.TrimSpace(o.config.String(ModelOption(provider))),
		SystemPrompt: o.config.String(SystemPromptOption(provider)),
		Question:     question,
		Answer:       answer,
	}
	if provider == adapter.ProviderAnthropic {
		req.Options = adapter.ReviewOptions{
			ExtendedThinking: o.config.Bool(OptExtendedThinking),
			MaxTokens:        o.config.Int(OptAnthropicMaxTokens),
			ThinkingBudget:   o.config.Int(OptThinkingBudget),
		}
	}
	return req
}
