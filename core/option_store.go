package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"review-gateway/core/adapter"
	"review-gateway/core/rotation"
	"review-gateway/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidOption = errors.New("invalid option value")
)

// OptionStore 基于 options 表的评审配置，读走内存缓存
type OptionStore struct {
	db     *gorm.DB
	logger *logrus.Logger

	mu     sync.RWMutex
	values map[string]interface{}
}

// NewOptionStore 构造并加载一次全部配置
func NewOptionStore(ctx context.Context, db *gorm.DB, logger *logrus.Logger) (*OptionStore, error) {
	s := &OptionStore{
		db:     db,
		logger: logger,
		values: make(map[string]interface{}),
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh 从数据库重新加载，整体替换缓存
func (s *OptionStore) Refresh(ctx context.Context) error {
	var rows []models.Option
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}

	values := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		var v interface{}
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			// 手工写入的非 JSON 值按字符串处理
			s.logger.Warnf("Option %s is not valid JSON, using raw string", row.Name)
			v = row.Value
		}
		values[row.Name] = v
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()

	s.logger.Infof("Loaded %d review options", len(values))
	return nil
}

// Set 校验并保存配置项；Key 池在保存时先做一次规范化
func (s *OptionStore) Set(ctx context.Context, name string, raw json.RawMessage) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty option name", ErrInvalidOption)
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}

	switch {
	case IsKeyPoolOption(name):
		v = rotation.NormalizeKeys(v)
	case name == OptReviewProvider:
		provider, ok := v.(string)
		if !ok || !validProvider(provider) {
			return fmt.Errorf("%w: unknown provider %v", ErrInvalidOption, v)
		}
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode option: %w", err)
	}

	row := models.Option{Name: name, Value: string(encoded), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save option %s: %w", name, err)
	}

	s.mu.Lock()
	s.values[name] = v
	s.mu.Unlock()
	return nil
}

// Delete 删除配置项，不存在时不报错
func (s *OptionStore) Delete(ctx context.Context, name string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Option{}).Error; err != nil {
		return fmt.Errorf("failed to delete option %s: %w", name, err)
	}
	s.mu.Lock()
	delete(s.values, name)
	s.mu.Unlock()
	return nil
}

func validProvider(p string) bool {
	switch p {
	case "", ProviderNone, adapter.ProviderAnthropic, adapter.ProviderOpenRouter, adapter.ProviderStraico:
		return true
	}
	return false
}

func (s *OptionStore) Value(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

func (s *OptionStore) String(name string) string {
	v, _ := s.Value(name)
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// Bool 兼容 WordPress 风格的 "1"/"yes"/"on"
func (s *OptionStore) Bool(name string) bool {
	v, _ := s.Value(name)
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

func (s *OptionStore) Int(name string) int {
	v, _ := s.Value(name)
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil {
			return n
		}
	}
	return 0
}

// OptionView 管理接口展示的配置项
type OptionView struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Snapshot 按名称排序的全部配置，Key 池中的条目脱敏
func (s *OptionStore) Snapshot() []OptionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OptionView, 0, len(s.values))
	for name, v := range s.values {
		out = append(out, OptionView{Name: name, Value: maskOption(name, v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Masked 单个配置项的展示值
func (s *OptionStore) Masked(name string) (interface{}, bool) {
	v, ok := s.Value(name)
	if !ok {
		return nil, false
	}
	return maskOption(name, v), true
}

func maskOption(name string, v interface{}) interface{} {
	if !IsKeyPoolOption(name) {
		return v
	}
	keys := rotation.NormalizeKeys(v)
	masked := make([]string, len(keys))
	for i, k := range keys {
		if strings.HasPrefix(k, EncryptedPrefix) {
			masked[i] = EncryptedPrefix + "***"
			continue
		}
		masked[i] = models.MaskAPIKey(k)
	}
	return masked
}
