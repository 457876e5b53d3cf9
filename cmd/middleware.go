package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"review-gateway/core"
	"review-gateway/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// extractToken 依次从 Authorization (Bearer)、?token=、x-api-key 读取
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return strings.TrimSpace(auth)
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	return c.GetHeader("x-api-key")
}

func abortAuth(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: models.ErrorDetail{Message: message, Type: "authentication_error"},
	})
}

// AdminAuthMiddleware 管理员鉴权，token 需存在于 admin_keys 表
func AdminAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			abortAuth(c, "Missing authentication token")
			return
		}

		var adminKey models.AdminKey
		if err := db.WithContext(c.Request.Context()).Where("key = ?", token).First(&adminKey).Error; err != nil {
			abortAuth(c, "Invalid token")
			return
		}

		c.Set("admin_id", adminKey.ID)
		c.Set("admin_name", adminKey.Name)
		c.Next()
	}
}

// GatewayAuthMiddleware 评审入口鉴权，未配置网关 token 时放行
func GatewayAuthMiddleware(auth core.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.Authorize(c.Request.Context(), extractToken(c)) {
			abortAuth(c, "Invalid gateway token")
			return
		}
		c.Next()
	}
}

// requestLoggerMiddleware 只记录失败请求；请求体可能含用户问题，不写日志
func requestLoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if id, ok := c.Get("request_id"); ok {
			fields["request_id"] = id
		}

		entry := log.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("Server error")
		case status >= 400:
			entry.Warn("Client error")
		default:
			entry.Debug("Request processed")
		}
	}
}

// corsMiddleware CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// client 包装限流器及其最后访问时间
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 按 IP 的令牌桶限流，后台定期清理不活跃的 IP
type IPRateLimiter struct {
	clients map[string]*client
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	idle    time.Duration
	stop    chan struct{}
	once    sync.Once
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		clients: make(map[string]*client),
		rate:    r,
		burst:   b,
		idle:    3 * time.Minute,
		stop:    make(chan struct{}),
	}
	go i.cleanupLoop(time.Minute)
	return i
}

// GetLimiter 获取或创建 IP 对应的限流器，并更新访问时间
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	c, exists := i.clients[ip]
	if !exists {
		c = &client{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.clients[ip] = c
	}

	c.lastSeen = time.Now()
	return c.limiter
}

func (i *IPRateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			i.cleanup(time.Now())
		case <-i.stop:
			return
		}
	}
}

// cleanup 删除超过 idle 未活跃的 IP
func (i *IPRateLimiter) cleanup(now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for ip, c := range i.clients {
		if now.Sub(c.lastSeen) > i.idle {
			delete(i.clients, ip)
		}
	}
}

// Stop 结束清理协程
func (i *IPRateLimiter) Stop() {
	i.once.Do(func() { close(i.stop) })
}

// RateLimitMiddleware IP 限流中间件
func RateLimitMiddleware(limiter *IPRateLimiter, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.GetLimiter(clientIP).Allow() {
			log.Warnf("Rate limit exceeded for IP: %s", clientIP)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: models.ErrorDetail{Message: "Too Many Requests", Type: "rate_limit_error"},
			})
			return
		}
		c.Next()
	}
}
