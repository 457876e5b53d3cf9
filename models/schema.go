package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// GatewaySettings 网关全局设置
type GatewaySettings struct {
	gorm.Model
	// GatewayToken 为空时 /v1/review 不做鉴权
	GatewayToken string `json:"gateway_token"`
}

// AdminKey 管理员密钥
type AdminKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Key       string    `gorm:"uniqueIndex" json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// Option 评审配置项 (key/value, value 为 JSON 编码)
type Option struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RotationState 每个 Key 池的轮询起点
type RotationState struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PoolName     string    `gorm:"uniqueIndex;not null" json:"pool_name"`
	CurrentIndex int       `gorm:"not null;default:0" json:"current_index"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FailoverEvent Key 故障转移诊断记录
type FailoverEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	PoolName    string    `gorm:"index" json:"pool_name"`
	FailedIndex int       `json:"failed_index"`
	KeyCount    int       `json:"key_count"`
	StatusCode  int       `json:"status_code"`
}

// AutoMigrate 自动迁移数据库结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&GatewaySettings{},
		&AdminKey{},
		&Option{},
		&RotationState{},
		&FailoverEvent{},
	)
}

// GenerateAdminKey 生成管理员密钥
func GenerateAdminKey() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return "sk-admin-" + hex.EncodeToString(bytes)
}

// InitializeDefaultData 初始化默认数据，首次启动时返回新生成的管理员密钥
func InitializeDefaultData(db *gorm.DB) (string, error) {
	var count int64
	db.Model(&GatewaySettings{}).Count(&count)
	if count == 0 {
		if err := db.Create(&GatewaySettings{}).Error; err != nil {
			return "", err
		}
	}

	var adminCount int64
	db.Model(&AdminKey{}).Count(&adminCount)
	if adminCount == 0 {
		adminKey := AdminKey{
			Name: "Initial Root Key",
			Key:  GenerateAdminKey(),
		}
		if err := db.Create(&adminKey).Error; err != nil {
			return "", err
		}
		return adminKey.Key, nil
	}

	return "", nil
}
