package retry

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"
)

// 默认重试参数。
const (
	DefaultLimit     = 3
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 30 * time.Second
	// MaxLimit: 可配置的重试次数上限。
	MaxLimit = 10
)

// Policy: 单次逻辑调用的重试策略。
// Limit 为“重试”次数（总尝试次数 = Limit+1）。
type Policy struct {
	Limit     int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter 返回 [0, 1) 区间的随机数；nil 时使用 math/rand。
	Jitter func() float64
}

// Default 返回默认策略。
func Default() Policy {
	return Policy{Limit: DefaultLimit, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

// Delay 计算第 attempt 次重试前的等待（attempt 从 0 起）：
// min(BaseDelay·2^attempt, MaxDelay) + jitter，jitter ∈ [0, 0.1·计算值)。
func (p Policy) Delay(attempt int) time.Duration {
	d := Backoff(attempt, p.BaseDelay, p.MaxDelay)
	r := p.Jitter
	if r == nil {
		r = rand.Float64
	}
	return d + time.Duration(r()*0.1*float64(d))
}

// Backoff 为不含抖动的指数退避，带上限。
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if max > 0 && d >= max {
			break
		}
		d *= 2
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

// Transient 报告状态码是否属于可重试的瞬时失败。
func Transient(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusRequestEntityTooLarge,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Sleep 可取消的等待；ctx 结束时返回 ctx.Err()。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
