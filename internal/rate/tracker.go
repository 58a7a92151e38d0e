package rate

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"figimap/pkg/contract"
)

// 远端限流响应头。
const (
	HeaderLimit     = "X-Ratelimit-Limit"
	HeaderRemaining = "X-Ratelimit-Remaining"
	HeaderReset     = "X-Ratelimit-Reset" // epoch 秒
)

// Tracker: 最近一次限流快照的单元格（last-writer-wins）。
// 读者拿到的是某次完整写入，不会看到部分字段。
type Tracker struct {
	cur atomic.Pointer[contract.RateLimitInfo]
}

// Default: 进程级快照，供未显式注入 Tracker 的调用方共享。
var Default = &Tracker{}

// Set 整体覆盖快照。
func (t *Tracker) Set(info contract.RateLimitInfo) {
	v := info
	t.cur.Store(&v)
}

// Current 返回最近快照；尚无成功记录时 ok=false。
func (t *Tracker) Current() (contract.RateLimitInfo, bool) {
	p := t.cur.Load()
	if p == nil {
		return contract.RateLimitInfo{}, false
	}
	return *p, true
}

// Observe 解析响应头并在三项齐全时覆盖快照；返回是否更新。
func (t *Tracker) Observe(h http.Header) bool {
	info, ok := ParseHeaders(h)
	if ok {
		t.Set(info)
	}
	return ok
}

// ParseHeaders 解析 limit/remaining/reset 三项；任一缺失或非整数则 ok=false。
func ParseHeaders(h http.Header) (contract.RateLimitInfo, bool) {
	limit, ok1 := intHeader(h, HeaderLimit)
	remaining, ok2 := intHeader(h, HeaderRemaining)
	reset, ok3 := intHeader(h, HeaderReset)
	if !ok1 || !ok2 || !ok3 {
		return contract.RateLimitInfo{}, false
	}
	return contract.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Unix(int64(reset), 0).UTC(),
	}, true
}

func intHeader(h http.Header, key string) (int, bool) {
	s := strings.TrimSpace(h.Get(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
