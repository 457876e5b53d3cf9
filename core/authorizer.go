package core

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"

	"review-gateway/models"

	"gorm.io/gorm"
)

// GatewayAuthorizer 用 gateway_settings 中的 token 校验 /v1/review 调用方
// token 为空表示不鉴权
type GatewayAuthorizer struct {
	db *gorm.DB

	mu    sync.RWMutex
	token string
}

func NewGatewayAuthorizer(ctx context.Context, db *gorm.DB) (*GatewayAuthorizer, error) {
	a := &GatewayAuthorizer{db: db}
	if err := a.Refresh(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Refresh 重新读取网关 token
func (a *GatewayAuthorizer) Refresh(ctx context.Context) error {
	var settings models.GatewaySettings
	if err := a.db.WithContext(ctx).First(&settings).Error; err != nil {
		return fmt.Errorf("failed to load gateway settings: %w", err)
	}
	a.mu.Lock()
	a.token = settings.GatewayToken
	a.mu.Unlock()
	return nil
}

// SetToken 写入新的网关 token 并立即生效；空字符串关闭鉴权
func (a *GatewayAuthorizer) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	err := a.db.WithContext(ctx).Model(&models.GatewaySettings{}).
		Where("1 = 1").
		Update("gateway_token", token).Error
	if err != nil {
		return fmt.Errorf("failed to save gateway token: %w", err)
	}
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
	return nil
}

// TokenPreview 脱敏后的 token，未配置时为空
func (a *GatewayAuthorizer) TokenPreview() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.token == "" {
		return ""
	}
	return models.MaskAPIKey(a.token)
}

// Enabled 是否配置了网关 token
func (a *GatewayAuthorizer) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != ""
}

func (a *GatewayAuthorizer) Authorize(_ context.Context, token string) bool {
	a.mu.RLock()
	expected := a.token
	a.mu.RUnlock()

	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}
