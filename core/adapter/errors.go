package adapter

import (
	"fmt"
	"net/http"
)

// SafeMessage 唯一允许展示给终端用户的失败提示，上游原始错误只进运维日志
const SafeMessage = "Your message request failed. Try again. If the problem persists, contact us."

// ErrorKind 错误分类 (不是错误类型)
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration_error"
	KindAnthropicAPI  ErrorKind = "anthropic_api_error"
	KindOpenRouterAPI ErrorKind = "openrouter_api_error"
	KindStraicoAPI    ErrorKind = "straico_api_error"
)

// APIErrorKind 返回 provider 对应的 *_api_error 分类
func APIErrorKind(provider string) ErrorKind {
	return ErrorKind(provider + "_api_error")
}

// ReviewError 评审调用的失败结果
type ReviewError struct {
	Kind     ErrorKind
	Provider string
	// Status HTTP 等价状态码：配置错误 500，传输/空内容 502，否则为上游状态码
	Status int
	Cause  error

	transport bool
}

func (e *ReviewError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s (HTTP %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d): %v", e.Kind, e.Status, e.Cause)
}

func (e *ReviewError) Unwrap() error { return e.Cause }

// HTTPStatus 供故障转移和 HTTP 层读取状态码
func (e *ReviewError) HTTPStatus() int { return e.Status }

// SafeMessage 返回用户可见的固定提示
func (e *ReviewError) SafeMessage() string { return SafeMessage }

// IsConfiguration 请求从未发出
func (e *ReviewError) IsConfiguration() bool { return e.Kind == KindConfiguration }

// IsTransport 网络层失败 (DNS/超时/连接)，没有上游响应
func (e *ReviewError) IsTransport() bool { return e.transport }

// NewConfigError 缺少模型或 Key 等配置问题
func NewConfigError(provider string, cause error) *ReviewError {
	return &ReviewError{
		Kind:     KindConfiguration,
		Provider: provider,
		Status:   http.StatusInternalServerError,
		Cause:    cause,
	}
}

func newStatusError(provider string, status int, cause error) *ReviewError {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return &ReviewError{
		Kind:     APIErrorKind(provider),
		Provider: provider,
		Status:   status,
		Cause:    cause,
	}
}

func newTransportError(provider string, cause error) *ReviewError {
	return &ReviewError{
		Kind:      APIErrorKind(provider),
		Provider:  provider,
		Status:    http.StatusBadGateway,
		Cause:     cause,
		transport: true,
	}
}
