package firstdata

import (
	"figimap/pkg/contract"
)

// Merger 实现“首个带数据者胜”的收敛策略：
//   - 同一 Origin 下按到达顺序，首个携带非空 data 的响应胜出，之后的响应不再覆盖；
//   - 均无 data 时保留首个到达的响应（可能只含 warning/error）；
//   - 无任何响应引用的 Origin 合成 warning 响应。
type Merger struct{}

// New 创建 Merger（无状态）。
func New() *Merger { return &Merger{} }

// NotFoundWarning 返回缺失响应时合成的 warning 文本。
func NotFoundWarning(value string) string { return "No identifier found for " + value }

// Merge 按 ids 顺序输出与之一一对应的结果；越界 Origin 被忽略。
func (m *Merger) Merge(ids []contract.DetectedIdentifier, outcomes []contract.Outcome) []contract.Resolution {
	out := make([]contract.Resolution, len(ids))
	seen := make([]bool, len(ids))
	for _, o := range outcomes {
		i := o.Origin
		if i < 0 || i >= len(ids) {
			continue
		}
		if !seen[i] || (o.Response.HasData() && !out[i].Response.HasData()) {
			out[i].Response = o.Response
			out[i].Variant = o.Variant
			seen[i] = true
		}
	}
	for i, id := range ids {
		out[i].Identifier = id
		if !seen[i] {
			out[i].Response = contract.MappingResponse{Warning: NotFoundWarning(id.Value)}
		}
	}
	return out
}

var _ contract.Merger = (*Merger)(nil)
