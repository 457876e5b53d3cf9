package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"review-gateway/core/metrics"
	"review-gateway/core/rotation"
	"review-gateway/models"

	"github.com/sirupsen/logrus"
)

// 上游响应体读取上限
const maxResponseBytes = 4 << 20

// ReviewClient 第二阶段评审的上游 provider
type ReviewClient interface {
	Name() string
	// Review 用池中的 Key 发起评审，返回非空文本或 *ReviewError
	Review(ctx context.Context, pool rotation.KeyPool, req ReviewRequest) (string, error)
}

// ReviewRequest 单次评审的不可变输入
type ReviewRequest struct {
	Model        string
	SystemPrompt string
	Question     string
	Answer       string
	Options      ReviewOptions
}

// ReviewOptions provider 专属选项，目前只有 Anthropic 使用
type ReviewOptions struct {
	ExtendedThinking bool
	MaxTokens        int
	ThinkingBudget   int
}

// PayloadHook 在发送前改写请求体
type PayloadHook func(payload map[string]interface{}) map[string]interface{}

// ClientConfig 各 provider 共用的构造参数，零值字段使用默认值
type ClientConfig struct {
	// Endpoints 按顺序尝试的候选 URL；404/405 视为"此处不支持"，继续下一个
	Endpoints   []string
	Timeout     time.Duration
	HTTPClient  *http.Client
	PayloadHook PayloadHook
	// Diagnostics 返回 true 时记录失败请求的端点、状态码和响应片段
	Diagnostics func() bool
	Rotator     *rotation.KeyRotator
	Logger      *logrus.Logger
}

// baseClient 端点候选循环、Key 轮询和诊断日志
type baseClient struct {
	provider    string
	endpoints   []string
	http        *http.Client
	hook        PayloadHook
	diagnostics func() bool
	rotator     *rotation.KeyRotator
	logger      *logrus.Logger
}

func newBaseClient(provider string, cfg ClientConfig, defaultEndpoints []string, defaultTimeout time.Duration) baseClient {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	endpoints := cleanEndpoints(cfg.Endpoints)
	if len(endpoints) == 0 {
		endpoints = defaultEndpoints
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = NewHTTPClient(timeout)
	}

	rotator := cfg.Rotator
	if rotator == nil {
		rotator = rotation.NewKeyRotator(rotation.NewMemoryIndexStore(), logger, nil)
	}

	return baseClient{
		provider:    provider,
		endpoints:   endpoints,
		http:        httpClient,
		hook:        cfg.PayloadHook,
		diagnostics: cfg.Diagnostics,
		rotator:     rotator,
		logger:      logger,
	}
}

func cleanEndpoints(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Endpoints 当前生效的候选端点
func (b *baseClient) Endpoints() []string {
	return append([]string(nil), b.endpoints...)
}

// review 校验前置条件后在 Key 池上运行 call
func (b *baseClient) review(ctx context.Context, pool rotation.KeyPool, req ReviewRequest,
	call func(ctx context.Context, key string) (string, *ReviewError)) (string, error) {

	if strings.TrimSpace(req.Model) == "" {
		metrics.ReviewsTotal.WithLabelValues(b.provider, string(KindConfiguration)).Inc()
		return "", NewConfigError(b.provider, errors.New("model is not configured"))
	}
	pool.Keys = rotation.NormalizeKeys(pool.Keys)
	if pool.Empty() {
		metrics.ReviewsTotal.WithLabelValues(b.provider, string(KindConfiguration)).Inc()
		return "", NewConfigError(b.provider, errors.New("no API key configured"))
	}
	if pool.Name == "" {
		pool.Name = b.provider
	}

	var text string
	err := b.rotator.Run(ctx, pool, func(ctx context.Context, idx int, key string) error {
		b.logger.Debugf("🎯 %s review with key #%d/%d (%s)", b.provider, idx+1, pool.Len(), models.MaskAPIKey(key))
		out, rerr := call(ctx, key)
		if rerr != nil {
			return rerr
		}
		text = out
		return nil
	})
	if err != nil {
		var rerr *ReviewError
		if !errors.As(err, &rerr) {
			rerr = newStatusError(b.provider, http.StatusBadGateway, err)
		}
		metrics.ReviewsTotal.WithLabelValues(b.provider, string(rerr.Kind)).Inc()
		b.logger.Warnf("⚠️ %s review failed: kind=%s status=%d", b.provider, rerr.Kind, rerr.Status)
		return "", rerr
	}

	metrics.ReviewsTotal.WithLabelValues(b.provider, "ok").Inc()
	return text, nil
}

// postJSON 依次尝试候选端点，返回第一个 2xx 响应体
//
// 404/405 继续下一个候选；其他非 2xx 对当前 Key 是终止性的；
// 传输层失败直接结束本次尝试。
func (b *baseClient) postJSON(ctx context.Context, payload map[string]interface{}, setHeaders func(h http.Header)) ([]byte, *ReviewError) {
	if b.hook != nil {
		payload = b.hook(payload)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewConfigError(b.provider, fmt.Errorf("marshal request: %w", err))
	}
	if len(b.endpoints) == 0 {
		return nil, NewConfigError(b.provider, errors.New("no endpoint configured"))
	}

	var lastErr *ReviewError
	for _, endpoint := range b.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, newTransportError(b.provider, fmt.Errorf("create request for %s: %w", endpoint, err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		setHeaders(req.Header)

		start := time.Now()
		resp, err := b.http.Do(req)
		metrics.UpstreamRequestDuration.WithLabelValues(b.provider).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(b.provider, metrics.StatusLabel(0)).Inc()
			b.diagnose(endpoint, 0, nil, err)
			return nil, newTransportError(b.provider, fmt.Errorf("request to %s: %w", endpoint, err))
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		metrics.UpstreamRequestsTotal.WithLabelValues(b.provider, metrics.StatusLabel(resp.StatusCode)).Inc()
		if readErr != nil {
			b.diagnose(endpoint, resp.StatusCode, nil, readErr)
			return nil, newTransportError(b.provider, fmt.Errorf("read response from %s: %w", endpoint, readErr))
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		b.diagnose(endpoint, resp.StatusCode, respBody, nil)
		rerr := newStatusError(b.provider, resp.StatusCode, fmt.Errorf("%s returned HTTP %d", endpoint, resp.StatusCode))
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
			lastErr = rerr
			continue
		}
		return nil, rerr
	}

	return nil, lastErr
}

// emptyContent 空白内容视为上游故障，不能当作真实回答
func (b *baseClient) emptyContent() *ReviewError {
	return newStatusError(b.provider, http.StatusBadGateway, errors.New("upstream returned empty content"))
}

func (b *baseClient) decodeError(err error) *ReviewError {
	return newStatusError(b.provider, http.StatusBadGateway, fmt.Errorf("decode response: %w", err))
}

// diagnose 仅在诊断开关打开时输出端点、状态码和截断后的响应片段
func (b *baseClient) diagnose(endpoint string, status int, body []byte, err error) {
	if b.diagnostics == nil || !b.diagnostics() {
		return
	}
	fields := logrus.Fields{
		"provider": b.provider,
		"endpoint": endpoint,
		"status":   status,
	}
	if len(body) > 0 {
		fields["body"] = bodySnippet(body)
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	b.logger.WithFields(fields).Warn("Upstream review request failed")
}
