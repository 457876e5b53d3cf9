// Package config holds process configuration parsed from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// 轮询指针的存储后端
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config 进程级配置；评审相关的配置项在 options 表中
type Config struct {
	Port   int    `env:"PORT" envDefault:"8000"`
	DBPath string `env:"DB_PATH" envDefault:"gateway.db"`

	// RotationBackend memory | sqlite | redis
	RotationBackend string `env:"ROTATION_BACKEND" envDefault:"sqlite"`
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile      string `env:"LOG_FILE"`
	LogMaxSizeMB int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`

	// SecretKey 非空时启用 enc: 前缀 Key 的 AES 解密
	SecretKey string `env:"SECRET_KEY"`

	AnthropicEndpoints  []string      `env:"ANTHROPIC_ENDPOINTS" envSeparator:","`
	OpenRouterEndpoints []string      `env:"OPENROUTER_ENDPOINTS" envSeparator:","`
	StraicoEndpoints    []string      `env:"STRAICO_ENDPOINTS" envSeparator:","`
	AnthropicTimeout    time.Duration `env:"ANTHROPIC_TIMEOUT" envDefault:"60s"`
	OpenRouterTimeout   time.Duration `env:"OPENROUTER_TIMEOUT" envDefault:"60s"`
	StraicoTimeout      time.Duration `env:"STRAICO_TIMEOUT" envDefault:"30s"`
	OpenRouterReferer   string        `env:"OPENROUTER_REFERER"`
	OpenRouterTitle     string        `env:"OPENROUTER_TITLE" envDefault:"Review Gateway"`

	RateLimitPerSec float64       `env:"RATE_LIMIT_PER_SEC" envDefault:"10"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load 解析并校验环境变量
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	cfg.RotationBackend = strings.ToLower(strings.TrimSpace(cfg.RotationBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c Config) Validate() error {
	switch c.RotationBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown ROTATION_BACKEND %q", c.RotationBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.RateLimitPerSec <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// EncryptionEnabled 是否配置了 SECRET_KEY
func (c Config) EncryptionEnabled() bool { return c.SecretKey != "" }
