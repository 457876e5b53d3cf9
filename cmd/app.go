package main

import (
	"context"
	"fmt"

	"review-gateway/config"
	"review-gateway/core"
	"review-gateway/core/adapter"
	"review-gateway/core/rotation"
	"review-gateway/core/security"
	"review-gateway/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// app 组装好的运行时依赖，serve 和一次性命令共用
type app struct {
	cfg    config.Config
	logger *logrus.Logger

	db         *gorm.DB
	redis      *redis.Client
	options    *core.OptionStore
	authorizer *core.GatewayAuthorizer
	secrets    core.SecretProvider
	rotator    *rotation.KeyRotator
	recorder   *rotation.FailoverRecorder
	reviewer   *core.ReviewOrchestrator
}

// buildApp 按配置初始化数据库、轮询存储、客户端和编排器
func buildApp(ctx context.Context, cfg config.Config, log *logrus.Logger) (*app, error) {
	db, err := initDatabase(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, db: db}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	a.secrets = core.NewNoOpSecretProvider()
	if cfg.EncryptionEnabled() {
		sp, err := security.NewAESSecretProvider(cfg.SecretKey)
		if err != nil {
			return fail(fmt.Errorf("failed to init secret provider: %w", err))
		}
		a.secrets = sp
	}

	if a.options, err = core.NewOptionStore(ctx, db, log); err != nil {
		return fail(err)
	}
	if a.authorizer, err = core.NewGatewayAuthorizer(ctx, db); err != nil {
		return fail(err)
	}

	store, err := a.newIndexStore(ctx)
	if err != nil {
		return fail(err)
	}
	a.recorder = rotation.NewFailoverRecorder(db, log)
	a.rotator = rotation.NewKeyRotator(store, log, a.recorder)

	clientCfg := func(endpoints []string) adapter.ClientConfig {
		return adapter.ClientConfig{
			Endpoints:   endpoints,
			Rotator:     a.rotator,
			Logger:      log,
			Diagnostics: func() bool { return a.options.Bool(core.OptDebugLogging) },
		}
	}
	anthropicCfg := clientCfg(cfg.AnthropicEndpoints)
	anthropicCfg.Timeout = cfg.AnthropicTimeout
	openRouterCfg := clientCfg(cfg.OpenRouterEndpoints)
	openRouterCfg.Timeout = cfg.OpenRouterTimeout
	straicoCfg := clientCfg(cfg.StraicoEndpoints)
	straicoCfg.Timeout = cfg.StraicoTimeout

	a.reviewer = core.NewReviewOrchestrator(a.options, a.secrets, log,
		adapter.NewAnthropicClient(anthropicCfg),
		adapter.NewOpenRouterClient(openRouterCfg, cfg.OpenRouterReferer, cfg.OpenRouterTitle),
		adapter.NewStraicoClient(straicoCfg),
	)

	return a, nil
}

func (a *app) newIndexStore(ctx context.Context) (rotation.IndexStore, error) {
	switch a.cfg.RotationBackend {
	case config.BackendMemory:
		return rotation.NewMemoryIndexStore(), nil
	case config.BackendRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect redis at %s: %w", a.cfg.RedisAddr, err)
		}
		a.logger.Infof("Rotation index stored in redis (%s)", a.cfg.RedisAddr)
		return rotation.NewRedisIndexStore(a.redis), nil
	default:
		return rotation.NewGormIndexStore(a.db), nil
	}
}

// Reload 重新读取配置项和网关 token
func (a *app) Reload(ctx context.Context) error {
	if err := a.options.Refresh(ctx); err != nil {
		return err
	}
	return a.authorizer.Refresh(ctx)
}

// Close 刷新故障转移事件并释放连接
func (a *app) Close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// initDatabase 初始化数据库
func initDatabase(path string, log *logrus.Logger) (*gorm.DB, error) {
	// 只在出错时记录 SQL 日志
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	rootKey, err := models.InitializeDefaultData(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize default data: %w", err)
	}
	if rootKey != "" {
		log.Warnf("🔑 Initial admin key created: %s (store it now, it is not shown again)", rootKey)
	}

	log.Debug("Database initialized successfully")
	return db, nil
}
