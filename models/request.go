package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ReviewAPIRequest /v1/review 请求体
type ReviewAPIRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
	// Provider 为空时使用 review_provider 配置
	Provider string `json:"provider,omitempty" binding:"omitempty,oneof=anthropic openrouter straico"`
}

// ReviewAPIResponse /v1/review 成功响应
type ReviewAPIResponse struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

// SetOptionRequest 更新配置项请求, Value 为任意 JSON 值
type SetOptionRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// ChatMessage OpenAI 风格的聊天消息
type ChatMessage struct {
	Role    string      `json:"role,omitempty"`
	Content interface{} `json:"content,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status      string `json:"status"`
	Gateway     string `json:"gateway"`
	Provider    string `json:"provider"`
	Rotation    string `json:"rotation_backend"`
	GatewayAuth bool   `json:"gateway_auth"`
	Timestamp   int64  `json:"timestamp"`
}

// SetGatewayTokenRequest 设置网关 token，空字符串关闭鉴权
type SetGatewayTokenRequest struct {
	GatewayToken *string `json:"gateway_token"`
}

// GatewayView 网关 token 状态 (只返回脱敏预览)
type GatewayView struct {
	AuthEnabled  bool   `json:"auth_enabled"`
	TokenPreview string `json:"token_preview,omitempty"`
}

// APIResponse 通用API响应
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// MaskAPIKey 脱敏API Key
func MaskAPIKey(key string) string {
	if key == "" {
		return "***"
	}

	if len(key) <= 4 {
		return key[:1] + "***"
	}

	if len(key) <= 8 {
		return key[:2] + "***" + key[len(key)-2:]
	}

	return key[:3] + "***" + key[len(key)-4:]
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(message string, data interface{}) *APIResponse {
	return &APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(message string) *APIResponse {
	return &APIResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
}

// StringContent 从ChatMessage.Content提取字符串内容
// 支持普通字符串和多模态数组格式
func (m *ChatMessage) StringContent() string {
	if m.Content == nil {
		return ""
	}

	if str, ok := m.Content.(string); ok {
		return str
	}

	// 多模态数组格式 [{"type": "text", "text": "..."}, ...]
	if arr, ok := m.Content.([]interface{}); ok {
		var result strings.Builder
		for _, item := range arr {
			itemMap, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if itemType, _ := itemMap["type"].(string); itemType != "text" {
				continue
			}
			if text, ok := itemMap["text"].(string); ok {
				result.WriteString(text)
			}
		}
		return result.String()
	}

	return ""
}
