package rotation

import (
	"sync"
	"time"

	"review-gateway/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FailoverRecorder 异步批量写入故障转移事件
type FailoverRecorder struct {
	db        *gorm.DB
	events    chan *models.FailoverEvent
	logger    *logrus.Logger
	batchSize int
	flushTime time.Duration
	keep      int
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
}

// NewFailoverRecorder 创建并启动后台写入 Worker
func NewFailoverRecorder(db *gorm.DB, logger *logrus.Logger) *FailoverRecorder {
	r := &FailoverRecorder{
		db:        db,
		events:    make(chan *models.FailoverEvent, 1000),
		logger:    logger,
		batchSize: 50,
		flushTime: 5 * time.Second,
		keep:      500,
		quit:      make(chan struct{}),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.workerLoop()
	}()
	return r
}

// Record 提交事件；队列满时丢弃，绝不阻塞请求路径
func (r *FailoverRecorder) Record(event *models.FailoverEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	select {
	case r.events <- event:
	default:
		r.logger.Warn("Failover event queue full, dropping event")
	}
}

func (r *FailoverRecorder) workerLoop() {
	var batch []*models.FailoverEvent
	ticker := time.NewTicker(r.flushTime)
	defer ticker.Stop()

	for {
		select {
		case ev := <-r.events:
			batch = append(batch, ev)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = nil
			}
		case <-r.quit:
			// 退出前清空队列
			for {
				select {
				case ev := <-r.events:
					batch = append(batch, ev)
				default:
					if len(batch) > 0 {
						r.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (r *FailoverRecorder) flush(events []*models.FailoverEvent) {
	if err := r.db.CreateInBatches(events, len(events)).Error; err != nil {
		r.logger.Errorf("[FailoverRecorder] Failed to flush %d events: %v", len(events), err)
		return
	}
	r.prune()
}

// prune 只保留最新的 keep 条
func (r *FailoverRecorder) prune() {
	var count int64
	if err := r.db.Model(&models.FailoverEvent{}).Count(&count).Error; err != nil {
		r.logger.Errorf("[FailoverRecorder] Failed to count events: %v", err)
		return
	}
	if count <= int64(r.keep) {
		return
	}

	var pivotID uint
	if err := r.db.Model(&models.FailoverEvent{}).Select("id").Order("id desc").Offset(r.keep).Limit(1).Scan(&pivotID).Error; err != nil {
		r.logger.Errorf("[FailoverRecorder] Failed to find prune boundary: %v", err)
		return
	}
	if pivotID == 0 {
		return
	}
	if err := r.db.Where("id <= ?", pivotID).Delete(&models.FailoverEvent{}).Error; err != nil {
		r.logger.Errorf("[FailoverRecorder] Failed to prune events up to id %d: %v", pivotID, err)
	}
}

// Recent 返回最近的事件，最新的在前
func (r *FailoverRecorder) Recent(limit int) ([]models.FailoverEvent, error) {
	if limit <= 0 || limit > r.keep {
		limit = r.keep
	}
	var events []models.FailoverEvent
	err := r.db.Order("id desc").Limit(limit).Find(&events).Error
	return events, err
}

// Close 刷新剩余事件并停止 Worker
func (r *FailoverRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
		r.wg.Wait()
	})
}
