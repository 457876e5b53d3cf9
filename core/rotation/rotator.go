package rotation

import (
	"context"
	"errors"
	"strconv"

	"review-gateway/core/metrics"
	"review-gateway/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyPool = errors.New("key pool is empty")
)

// IndexStore 持久化每个池的轮询起点
// 实现必须保证 Increment 对同一个池名是原子的
type IndexStore interface {
	Get(ctx context.Context, pool string) (int, error)
	// Increment 原子地执行 (v + 1) % mod 并返回新值
	Increment(ctx context.Context, pool string, mod int) (int, error)
	Set(ctx context.Context, pool string, index int) error
	Reset(ctx context.Context, pool string) error
	All(ctx context.Context) (map[string]int, error)
}

// FailoverSink 接收故障转移诊断事件 (不得阻塞调用方)
type FailoverSink interface {
	Record(event *models.FailoverEvent)
}

// KeyRotator 管理跨请求的 Key 轮询指针
//
// 请求内的故障转移只读取指针；指针只在请求成功后前进，
// 失败永远不会移动它。
type KeyRotator struct {
	store  IndexStore
	logger *logrus.Logger
	sink   FailoverSink
}

// NewKeyRotator 构造函数, sink 可以为 nil
func NewKeyRotator(store IndexStore, logger *logrus.Logger, sink FailoverSink) *KeyRotator {
	return &KeyRotator{
		store:  store,
		logger: logger,
		sink:   sink,
	}
}

// CurrentIndex 返回池的当前起点，未见过的池或存储出错时返回 0
func (r *KeyRotator) CurrentIndex(ctx context.Context, pool string) int {
	idx, err := r.store.Get(ctx, pool)
	if err != nil {
		r.logger.Warnf("Failed to read rotation index for pool %s, starting at 0: %v", pool, err)
		return 0
	}
	if idx < 0 {
		return 0
	}
	return idx
}

// IncrementIndex 将起点设为 (current + 1) % keyCount；keyCount <= 1 时不做任何事
func (r *KeyRotator) IncrementIndex(ctx context.Context, pool string, keyCount int) {
	if keyCount <= 1 {
		return
	}
	next, err := r.store.Increment(ctx, pool, keyCount)
	if err != nil {
		r.logger.Errorf("Failed to advance rotation index for pool %s: %v", pool, err)
		return
	}
	r.logger.Debugf("Rotation index for pool %s advanced to %d/%d", pool, next, keyCount)
}

// AdvancePast 将起点设为刚刚成功的 Key 的下一个
func (r *KeyRotator) AdvancePast(ctx context.Context, pool string, index, keyCount int) {
	if keyCount <= 1 {
		return
	}
	next := (index + 1) % keyCount
	if err := r.store.Set(ctx, pool, next); err != nil {
		r.logger.Errorf("Failed to set rotation index for pool %s: %v", pool, err)
		return
	}
	r.logger.Debugf("Rotation index for pool %s moved past key %d to %d/%d", pool, index, next, keyCount)
}

// LogFailover 记录一次故障转移；只做诊断，不修改轮询指针
func (r *KeyRotator) LogFailover(ctx context.Context, pool string, failedIndex, status, keyCount int) {
	r.logger.WithFields(logrus.Fields{
		"pool":         pool,
		"failed_index": failedIndex,
		"status":       status,
		"key_count":    keyCount,
	}).Warn("🔄 Key failover")

	metrics.KeyFailoversTotal.WithLabelValues(pool, strconv.Itoa(status)).Inc()

	if r.sink != nil {
		r.sink.Record(&models.FailoverEvent{
			PoolName:    pool,
			FailedIndex: failedIndex,
			KeyCount:    keyCount,
			StatusCode:  status,
		})
	}
}

// Snapshot 返回所有池的当前起点
func (r *KeyRotator) Snapshot(ctx context.Context) (map[string]int, error) {
	return r.store.All(ctx)
}

// Reset 将池的起点清零
func (r *KeyRotator) Reset(ctx context.Context, pool string) error {
	return r.store.Reset(ctx, pool)
}
