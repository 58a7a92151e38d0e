package diag

import (
	"sort"
	"sync"
	"sync/atomic"
)

// 进程内指标计数（无导出端点）：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计值）

var counters sync.Map // string -> *atomic.Int64

func add(key string, n int64) {
	v, _ := counters.LoadOrStore(key, new(atomic.Int64))
	v.(*atomic.Int64).Add(n)
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	add("op_total{comp="+comp+",stage="+stage+",result="+result+"}", 1)
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	add("error_total{comp="+comp+",code="+code+"}", 1)
}

// ObserveDuration 累加阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	add("op_duration_ms{comp="+comp+",stage="+stage+"}", durMS)
}

// Metric: 单个计数快照。
type Metric struct {
	Name  string
	Value int64
}

// Metrics 返回按名称排序的计数快照。
func Metrics() []Metric {
	var out []Metric
	counters.Range(func(k, v any) bool {
		out = append(out, Metric{Name: k.(string), Value: v.(*atomic.Int64).Load()})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetMetrics 清空计数（测试用）。
func ResetMetrics() {
	counters.Range(func(k, _ any) bool {
		counters.Delete(k)
		return true
	})
}
