package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"review-gateway/core/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the review HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := ctx.newLogger(true)
			if err != nil {
				return err
			}
			defer closeLog()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(sigCtx, ctx.config, log)
			if err != nil {
				return err
			}
			defer a.Close()

			metrics.InitMetrics()
			limiter := NewIPRateLimiter(rate.Limit(ctx.config.RateLimitPerSec), ctx.config.RateLimitBurst)
			defer limiter.Stop()

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", ctx.config.Port),
				Handler: newEngine(a, limiter),
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infof("🚀 Starting Review Gateway on port %d (provider=%s, rotation=%s)",
					ctx.config.Port, a.reviewer.Provider(), ctx.config.RotationBackend)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-sigCtx.Done():
			}

			log.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), ctx.config.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}

			log.Info("Server exited")
			return nil
		},
	}
}

// newEngine 组装路由
func newEngine(a *app, limiter *IPRateLimiter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.RecoveryWithWriter(a.logger.Writer()))
	engine.Use(corsMiddleware())

	// 公开路由 - 无需鉴权，无访问日志
	engine.GET("/health", handleHealth(a))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/v1")
	api.Use(requestLoggerMiddleware(a.logger))
	{
		api.POST("/review", RateLimitMiddleware(limiter, a.logger), GatewayAuthMiddleware(a.authorizer), handleReview(a))
	}

	admin := engine.Group("/admin")
	admin.Use(AdminAuthMiddleware(a.db))
	{
		admin.GET("/options", handleListOptions(a))
		admin.GET("/options/:name", handleGetOption(a))
		admin.PUT("/options/:name", handleSetOption(a))
		admin.DELETE("/options/:name", handleDeleteOption(a))
		admin.POST("/reload", handleReload(a))
		admin.GET("/gateway", handleGetGateway(a))
		admin.PUT("/gateway", handleSetGateway(a))

		admin.GET("/rotation", handleRotation(a))
		admin.DELETE("/rotation/:pool", handleResetRotation(a))
		admin.GET("/failovers", handleFailovers(a))

		admin.GET("/keys", handleListAdminKeys(a.db))
		admin.POST("/keys", handleCreateAdminKey(a.db))
		admin.DELETE("/keys/:id", handleDeleteAdminKey(a.db))
	}

	return engine
}
