package rate

import (
	"context"
	"sync"
	"time"

	"figimap/internal/retry"
	"figimap/pkg/contract"
)

// LimitKey: 节流分组键（凭据 + 端点派生，见 DeriveKey）。
type LimitKey string

// Limits: 每分组的本地节流配置。0 表示不启用。
// 远端配额未知时仅作为可选的主动节流，远端 429 仍由传输层重试处理。
type Limits struct {
	RPM int // requests per minute
}

// Gate: 本地请求节流闸门（并发安全）。
type Gate interface {
	// Wait: 阻塞直到可放行 n 个请求或 ctx 取消。
	Wait(ctx context.Context, key LimitKey, n int) error
	// Try: 非阻塞尝试；不足时返回 false。
	Try(key LimitKey, n int) bool
}

// NewGate: 从静态配置构造闸门；clk 为空则使用 time.Now。
func NewGate(m map[LimitKey]Limits, clk func() time.Time) Gate {
	if clk == nil {
		clk = time.Now
	}
	g := &gate{clk: clk, m: make(map[LimitKey]*entry, len(m))}
	now := clk()
	for k, lim := range m {
		g.m[k] = &entry{req: newBucket(lim.RPM, now)}
	}
	return g
}

type gate struct {
	clk func() time.Time
	mu  sync.Mutex // 保护 m
	m   map[LimitKey]*entry
}

type entry struct {
	mu  sync.Mutex
	req bucket
}

// bucket: 令牌桶，容量 cap，按 cap/60 每秒回填。
type bucket struct {
	cap   int
	level float64
	rate  float64
	last  time.Time
}

func newBucket(capacity int, now time.Time) bucket {
	if capacity <= 0 {
		return bucket{}
	}
	return bucket{cap: capacity, level: float64(capacity), rate: float64(capacity) / 60.0, last: now}
}

func (b *bucket) enabled() bool { return b.cap > 0 }

func (b *bucket) refill(now time.Time) {
	if !b.enabled() || now.Before(b.last) {
		// 时钟回拨视为无时间流逝
		return
	}
	b.level += now.Sub(b.last).Seconds() * b.rate
	if b.level > float64(b.cap) {
		b.level = float64(b.cap)
	}
	b.last = now
}

func (b *bucket) canTake(n int) bool { return !b.enabled() || b.level >= float64(n) }

func (b *bucket) take(n int) {
	if !b.enabled() {
		return
	}
	b.level -= float64(n)
	if b.level < 0 {
		b.level = 0
	}
}

// waitFor 返回达到可消费 n 还需等待的时长（近似）。
func (b *bucket) waitFor(n int) time.Duration {
	if !b.enabled() {
		return 0
	}
	deficit := float64(n) - b.level
	if deficit <= 0 {
		return 0
	}
	return time.Duration(deficit / b.rate * float64(time.Second))
}

func (g *gate) get(key LimitKey) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.m[key]
	if e == nil {
		// 未配置的 key 视为不限额
		e = &entry{}
		g.m[key] = e
	}
	return e
}

func (g *gate) Try(key LimitKey, n int) bool {
	if n <= 0 {
		return false
	}
	e := g.get(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.req.enabled() && n > e.req.cap {
		return false
	}
	e.req.refill(g.clk())
	if e.req.canTake(n) {
		e.req.take(n)
		return true
	}
	return false
}

func (g *gate) Wait(ctx context.Context, key LimitKey, n int) error {
	if n <= 0 {
		return contract.NewValidationError("rate: request count must be >= 1, got %d", n)
	}
	e := g.get(key)
	e.mu.Lock()
	over := e.req.enabled() && n > e.req.cap
	e.mu.Unlock()
	if over {
		return contract.NewValidationError("rate: request count %d exceeds per-minute capacity", n)
	}
	const minSleep = 10 * time.Millisecond
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.mu.Lock()
		e.req.refill(g.clk())
		if e.req.canTake(n) {
			e.req.take(n)
			e.mu.Unlock()
			return nil
		}
		d := e.req.waitFor(n) + minSleep
		e.mu.Unlock()
		if err := retry.Sleep(ctx, d); err != nil {
			return err
		}
	}
}

var _ Gate = (*gate)(nil)
