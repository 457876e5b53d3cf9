package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review-gateway/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIndexStore 将轮询指针保存在 rotation_states 表中
type GormIndexStore struct {
	db *gorm.DB
}

func NewGormIndexStore(db *gorm.DB) *GormIndexStore {
	return &GormIndexStore{db: db}
}

func (s *GormIndexStore) Get(ctx context.Context, pool string) (int, error) {
	var state models.RotationState
	err := s.db.WithContext(ctx).Where("pool_name = ?", pool).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load rotation state: %w", err)
	}
	return state.CurrentIndex, nil
}

// Increment 在一个事务里用单条 UPDATE 完成读改写，避免并发请求丢失更新
func (s *GormIndexStore) Increment(ctx context.Context, pool string, mod int) (int, error) {
	if mod <= 0 {
		return 0, s.Set(ctx, pool, 0)
	}

	var next int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.RotationState{PoolName: pool}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.RotationState{}).
			Where("pool_name = ?", pool).
			Updates(map[string]interface{}{
				"current_index": gorm.Expr("(current_index + 1) % ?", mod),
				"updated_at":    time.Now(),
			}).Error; err != nil {
			return err
		}

		var state models.RotationState
		if err := tx.Where("pool_name = ?", pool).First(&state).Error; err != nil {
			return err
		}
		next = state.CurrentIndex
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment rotation state: %w", err)
	}
	return next, nil
}

func (s *GormIndexStore) Set(ctx context.Context, pool string, index int) error {
	state := models.RotationState{
		PoolName:     pool,
		CurrentIndex: index,
		UpdatedAt:    time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pool_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_index", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("failed to save rotation state: %w", err)
	}
	return nil
}

func (s *GormIndexStore) Reset(ctx context.Context, pool string) error {
	return s.db.WithContext(ctx).Where("pool_name = ?", pool).Delete(&models.RotationState{}).Error
}

func (s *GormIndexStore) All(ctx context.Context) (map[string]int, error) {
	var states []models.RotationState
	if err := s.db.WithContext(ctx).Order("pool_name ASC").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("failed to list rotation states: %w", err)
	}

	out := make(map[string]int, len(states))
	for _, st := range states {
		out[st.PoolName] = st.CurrentIndex
	}
	return out, nil
}
