package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"review-gateway/core"
	"review-gateway/core/adapter"
	"review-gateway/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// parseAndValidateID 解析并验证字符串ID为uint
func parseAndValidateID(idStr string, paramName string) (uint, error) {
	if idStr == "" {
		return 0, fmt.Errorf("missing %s parameter", paramName)
	}

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a number", paramName)
	}

	return uint(id), nil
}

// withTransaction 执行事务处理，自动处理错误回滚
func withTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func errorJSON(c *gin.Context, status int, message, kind string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{Message: message, Type: kind},
	})
}

// handleReview 第二阶段评审入口
//
// 失败时只返回固定的安全提示和错误分类，上游原文只进日志。
func handleReview(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ReviewAPIRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error(), "invalid_request_error")
			return
		}

		res, err := a.reviewer.Review(c.Request.Context(), req.Question, req.Answer, req.Provider)
		if err != nil {
			var rerr *adapter.ReviewError
			switch {
			case errors.As(err, &rerr):
				errorJSON(c, rerr.HTTPStatus(), rerr.SafeMessage(), string(rerr.Kind))
			case errors.Is(err, core.ErrReviewDisabled):
				errorJSON(c, http.StatusServiceUnavailable, "Review is disabled", "review_disabled")
			case errors.Is(err, core.ErrUnknownProvider):
				errorJSON(c, http.StatusBadRequest, err.Error(), "invalid_request_error")
			default:
				a.logger.Errorf("Unexpected review failure: %v", err)
				errorJSON(c, http.StatusInternalServerError, adapter.SafeMessage, "internal_error")
			}
			return
		}

		c.Set("request_id", res.ID)
		c.JSON(http.StatusOK, models.ReviewAPIResponse{
			ID:       res.ID,
			Provider: res.Provider,
			Text:     res.Text,
		})
	}
}

// handleHealth 处理健康检查
func handleHealth(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      "healthy",
			Gateway:     "Review Gateway",
			Provider:    a.reviewer.Provider(),
			Rotation:    a.cfg.RotationBackend,
			GatewayAuth: a.authorizer.Enabled(),
			Timestamp:   time.Now().Unix(),
		})
	}
}

// handleListOptions 列出全部配置项 (Key 已脱敏)
func handleListOptions(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.NewSuccessResponse("Options retrieved successfully", a.options.Snapshot()))
	}
}

func handleGetOption(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		v, ok := a.options.Masked(name)
		if !ok {
			c.JSON(http.StatusNotFound, models.NewErrorResponse("Option not found"))
			return
		}
		c.JSON(http.StatusOK, models.NewSuccessResponse("Option retrieved successfully", core.OptionView{Name: name, Value: v}))
	}
}

// handleSetOption 保存配置项；Key 池在保存时规范化
func handleSetOption(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SetOptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("Invalid request format: "+err.Error()))
			return
		}

		name := c.Param("name")
		if err := a.options.Set(c.Request.Context(), name, req.Value); err != nil {
			if errors.Is(err, core.ErrInvalidOption) {
				c.JSON(http.StatusBadRequest, models.NewErrorResponse(err.Error()))
				return
			}
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to save option"))
			return
		}

		v, _ := a.options.Masked(name)
		a.logger.Infof("Option %s updated by %v", name, c.GetString("admin_name"))
		c.JSON(http.StatusOK, models.NewSuccessResponse("Option saved successfully", core.OptionView{Name: name, Value: v}))
	}
}

func handleDeleteOption(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := a.options.Delete(c.Request.Context(), name); err != nil {
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to delete option"))
			return
		}
		c.JSON(http.StatusOK, models.NewSuccessResponse("Option deleted successfully", gin.H{"name": name}))
	}
}

// handleReload 处理配置重载
func handleReload(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Reload(c.Request.Context()); err != nil {
			a.logger.Errorf("Reload failed: %v", err)
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to reload configuration"))
			return
		}

		c.JSON(http.StatusOK, models.NewSuccessResponse("Configuration reloaded successfully", gin.H{
			"timestamp": time.Now().Unix(),
		}))
	}
}

func gatewayView(a *app) models.GatewayView {
	return models.GatewayView{
		AuthEnabled:  a.authorizer.Enabled(),
		TokenPreview: a.authorizer.TokenPreview(),
	}
}

func handleGetGateway(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.NewSuccessResponse("Gateway settings retrieved successfully", gatewayView(a)))
	}
}

// handleSetGateway 更新 /v1/review 的网关 token，立即生效
func handleSetGateway(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SetGatewayTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("Invalid request format: "+err.Error()))
			return
		}
		if req.GatewayToken == nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("gateway_token is required"))
			return
		}

		if err := a.authorizer.SetToken(c.Request.Context(), *req.GatewayToken); err != nil {
			a.logger.Errorf("Failed to update gateway token: %v", err)
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to update gateway token"))
			return
		}

		view := gatewayView(a)
		a.logger.Infof("Gateway token updated by %v (auth enabled: %v)", c.GetString("admin_name"), view.AuthEnabled)
		c.JSON(http.StatusOK, models.NewSuccessResponse("Gateway settings saved successfully", view))
	}
}

// handleRotation 每个池当前的轮询起点
func handleRotation(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := a.rotator.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to read rotation state"))
			return
		}
		c.JSON(http.StatusOK, models.NewSuccessResponse("Rotation state retrieved successfully", snapshot))
	}
}

func handleResetRotation(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		pool := c.Param("pool")
		if err := a.rotator.Reset(c.Request.Context(), pool); err != nil {
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to reset rotation state"))
			return
		}
		c.JSON(http.StatusOK, models.NewSuccessResponse("Rotation state reset", gin.H{"pool": pool}))
	}
}

// handleFailovers 最近的 Key 故障转移事件，?limit= 默认 50
func handleFailovers(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, models.NewErrorResponse("invalid limit"))
				return
			}
			limit = n
		}

		events, err := a.recorder.Recent(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to query failover events"))
			return
		}
		c.JSON(http.StatusOK, models.NewSuccessResponse("Failover events retrieved successfully", events))
	}
}

// handleListAdminKeys 列出管理员密钥 (只返回脱敏预览)
func handleListAdminKeys(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var adminKeys []models.AdminKey
		if err := db.Order("id ASC").Find(&adminKeys).Error; err != nil {
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to query admin keys"))
			return
		}

		type adminKeyView struct {
			ID         uint   `json:"id"`
			Name       string `json:"name"`
			KeyPreview string `json:"key_preview"`
			CreatedAt  int64  `json:"created_at"`
		}

		response := make([]adminKeyView, len(adminKeys))
		for i, key := range adminKeys {
			response[i] = adminKeyView{
				ID:         key.ID,
				Name:       key.Name,
				KeyPreview: models.MaskAPIKey(key.Key),
				CreatedAt:  key.CreatedAt.Unix(),
			}
		}

		c.JSON(http.StatusOK, models.NewSuccessResponse("Admin keys retrieved successfully", response))
	}
}

// handleCreateAdminKey 创建管理员密钥，完整密钥只在此时返回
func handleCreateAdminKey(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("Invalid request format: "+err.Error()))
			return
		}

		adminKey := models.AdminKey{
			Name: request.Name,
			Key:  models.GenerateAdminKey(),
		}
		if err := db.Create(&adminKey).Error; err != nil {
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to create admin key"))
			return
		}

		c.JSON(http.StatusOK, models.NewSuccessResponse("Admin key created successfully", gin.H{
			"id":   adminKey.ID,
			"name": adminKey.Name,
			"key":  adminKey.Key,
		}))
	}
}

var errLastAdminKey = errors.New("cannot delete the last admin key")

// handleDeleteAdminKey 删除管理员密钥，至少保留一个
func handleDeleteAdminKey(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseAndValidateID(c.Param("id"), "admin key ID")
		if err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(err.Error()))
			return
		}

		var adminKey models.AdminKey
		if err := db.First(&adminKey, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, models.NewErrorResponse("Admin key not found"))
				return
			}
			c.JSON(http.StatusInternalServerError, models.NewErrorResponse("Failed to query admin key"))
			return
		}

		// 在事务内重新计数，避免并发删除掉最后一个
		err = withTransaction(db, func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.AdminKey{}).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to count admin keys: %w", err)
			}
			if count <= 1 {
				return errLastAdminKey
			}
			return tx.Delete(&adminKey).Error
		})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, errLastAdminKey) {
				status = http.StatusBadRequest
			}
			c.JSON(status, models.NewErrorResponse(err.Error()))
			return
		}

		c.JSON(http.StatusOK, models.NewSuccessResponse("Admin key deleted successfully", gin.H{
			"id":   adminKey.ID,
			"name": adminKey.Name,
		}))
	}
}
