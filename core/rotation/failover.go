package rotation

import (
	"context"
	"errors"
)

// AttemptFunc 用一个 Key 完整地执行一次上游请求 (包括端点候选和协议内重试)
type AttemptFunc func(ctx context.Context, index int, key string) error

// StatusOf 取出错误携带的 HTTP 状态码，没有则返回 0
func StatusOf(err error) int {
	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// IsFailoverStatus 鉴权和限流类错误，换一个 Key 可能成功
func IsFailoverStatus(status int) bool {
	return status == 401 || status == 403 || status == 429
}

// Run 以轮询顺序在池内依次尝试 Key
//
// 起点取自持久化的指针；401/403/429 切换到下一个 Key，其他错误立即返回。
// 第一次成功后指针前进到成功 Key 的下一个位置。尝试是严格串行的。
func (r *KeyRotator) Run(ctx context.Context, pool KeyPool, attempt AttemptFunc) error {
	keys := NormalizeKeys(pool.Keys)
	n := len(keys)
	if n == 0 {
		return ErrEmptyPool
	}

	// 单 Key 无需轮询
	if n == 1 {
		return attempt(ctx, 0, keys[0])
	}

	start := r.CurrentIndex(ctx, pool.Name) % n

	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n

		err := attempt(ctx, idx, keys[idx])
		if err == nil {
			if i == 0 {
				r.IncrementIndex(ctx, pool.Name, n)
			} else {
				r.AdvancePast(ctx, pool.Name, idx, n)
			}
			return nil
		}

		lastErr = err
		status := StatusOf(err)
		if !IsFailoverStatus(status) {
			return err
		}
		if i == n-1 {
			break
		}

		r.LogFailover(ctx, pool.Name, idx, status, n)
	}

	r.logger.Warnf("💀 All %d keys in pool %s failed with auth/rate-limit errors", n, pool.Name)
	return lastErr
}
