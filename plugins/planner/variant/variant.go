package variant

import (
	"errors"
	"fmt"

	"figimap/pkg/contract"
)

// DefaultTickerVariants: ticker 候选的 securityType2 猜测（按命中可能性排序）。
var DefaultTickerVariants = []string{string(contract.SecCommonStock), string(contract.SecPreference)}

// Options 为变体展开 Planner 的可选配置。
type Options struct {
	// TickerVariants: 每个 Ticker 展开的 securityType2 列表；为空时取 DefaultTickerVariants。
	TickerVariants []string `json:"ticker_variants"`
	// SkipUnknown: true 时 Unknown 种类不产生候选（由合并阶段补 warning）；
	// false 时遇到 Unknown 返回校验错误。
	SkipUnknown bool `json:"skip_unknown"`
}

// Planner 将检测结果展开为候选序列并按档位上限切片。
type Planner struct {
	variants    []string
	skipUnknown bool
}

// New 创建 Planner。
func New(opts *Options) *Planner {
	p := &Planner{variants: DefaultTickerVariants}
	if opts != nil {
		if len(opts.TickerVariants) > 0 {
			p.variants = append([]string(nil), opts.TickerVariants...)
		}
		p.skipUnknown = opts.SkipUnknown
	}
	return p
}

// Expand 生成带 Origin 回指的候选序列（未切片）。
// Ticker 按 variants 顺序展开，全部变体携带相同 exchCode；其余种类恰为一个候选。
func (p *Planner) Expand(ids []contract.DetectedIdentifier) ([]contract.Candidate, error) {
	out := make([]contract.Candidate, 0, len(ids)+len(ids)/2)
	for i, id := range ids {
		idType, ok := id.Kind.IDType()
		if !ok {
			if p.skipUnknown {
				continue
			}
			return nil, contract.NewValidationError("could not determine identifier type for %q at position %d", id.Value, i)
		}
		base := contract.MappingRequest{IDType: idType, IDValue: id.Value, ExchCode: id.ExchCode}
		if id.Kind != contract.KindTicker {
			out = append(out, contract.Candidate{Request: base, Origin: i})
			continue
		}
		for _, v := range p.variants {
			r := base
			r.SecurityType2 = v
			out = append(out, contract.Candidate{Request: r, Origin: i, Variant: v})
		}
	}
	return out, nil
}

// Plan 展开后按固定窗口切片，每批长度 <= tierCap，保持相对顺序。
// 同一 ticker 的变体可能落入相邻两批。
func (p *Planner) Plan(ids []contract.DetectedIdentifier, tierCap int) ([]contract.Batch, error) {
	if tierCap < 1 {
		return nil, errors.New("planner: tier cap must be >= 1")
	}
	if tierCap > contract.MaxRequestsPerCall {
		return nil, fmt.Errorf("planner: tier cap %d exceeds per-call maximum %d", tierCap, contract.MaxRequestsPerCall)
	}
	cands, err := p.Expand(ids)
	if err != nil {
		return nil, err
	}
	return Chunk(cands, tierCap), nil
}

// Chunk 将候选序列切为长度至多 size 的窗口；空输入返回 nil。
func Chunk(cands []contract.Candidate, size int) []contract.Batch {
	if len(cands) == 0 || size < 1 {
		return nil
	}
	out := make([]contract.Batch, 0, (len(cands)+size-1)/size)
	for l := 0; l < len(cands); l += size {
		r := l + size
		if r > len(cands) {
			r = len(cands)
		}
		out = append(out, contract.Batch(cands[l:r:r]))
	}
	return out
}

var _ contract.Planner = (*Planner)(nil)
