package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"figimap/internal/diag"
	"figimap/internal/rate"
	"figimap/pkg/contract"
)

// - 串行派发：批次按计划顺序逐个 await，单个 Resolver 同一时刻至多一个在途远端调用；
// - 重试位于 Mapper 内部，本层不重复重试；
// - 首错中止：任一批失败即放弃剩余批次并返回该错误；
// - 回指合并：候选携带 Origin，合并后输出顺序与输入标识一致。

// Components 聚合运行所需的原子组件。
type Components struct {
	Detector contract.Detector
	Planner  contract.Planner
	Mapper   contract.Mapper
	Merger   contract.Merger
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// TierCap: 每批上限；<=0 时由 Mapper（contract.TierAware）报告，否则取匿名档位。
	TierCap int
	// RateLimits: 限流快照来源；nil 时优先 Mapper（contract.RateLimitSource），否则进程级 rate.Default。
	RateLimits contract.RateLimitSource
	// MapperName: 仅用于日志与终端提示。
	MapperName string
	Logger     *diag.Logger
}

// Resolver 为调用方入口：检测、解析、批量解析与原始映射。
type Resolver struct {
	comp    Components
	tierCap int
	rl      contract.RateLimitSource
	name    string
	log     *diag.Logger
	sem     *semaphore.Weighted
}

// New 校验组件并构造 Resolver。
func New(comp Components, set Settings) (*Resolver, error) {
	if err := sanity(comp); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	capN := set.TierCap
	if capN <= 0 {
		capN = contract.TierCapAnonymous
		if ta, ok := comp.Mapper.(contract.TierAware); ok {
			capN = ta.TierCap()
		}
	}
	if capN > contract.MaxRequestsPerCall {
		return nil, contract.NewValidationError("tier cap %d exceeds per-call maximum %d", capN, contract.MaxRequestsPerCall)
	}
	rl := set.RateLimits
	if rl == nil {
		if src, ok := comp.Mapper.(contract.RateLimitSource); ok {
			rl = src
		} else {
			rl = trackerSource{rate.Default}
		}
	}
	log := set.Logger
	if log == nil {
		log = diag.Nop()
	}
	name := set.MapperName
	if name == "" {
		name = "mapper"
	}
	return &Resolver{comp: comp, tierCap: capN, rl: rl, name: name, log: log, sem: semaphore.NewWeighted(1)}, nil
}

// TierCap 返回生效的每批上限。
func (r *Resolver) TierCap() int { return r.tierCap }

// Detect 分类单个 token。
func (r *Resolver) Detect(raw string) contract.DetectedIdentifier { return r.comp.Detector.Detect(raw) }

// ParseBatch 解析自由文本/CSV。
func (r *Resolver) ParseBatch(text string) contract.Parsed { return r.comp.Detector.Parse(text) }

// RateLimitSnapshot 返回最近一次限流快照；首次成功调用前 ok=false。
func (r *Resolver) RateLimitSnapshot() (contract.RateLimitInfo, bool) { return r.rl.RateLimit() }

// UnknownWarning 返回无法识别类型时的 warning 文本。
func UnknownWarning(value string) string {
	return fmt.Sprintf("Could not determine identifier type for %q", value)
}

// ResolveOne 检测并解析单个标识；ticker 同样尝试全部变体。
// 无法识别类型时返回校验错误，不发起网络调用。
func (r *Resolver) ResolveOne(ctx context.Context, raw string) (contract.Resolution, error) {
	id := r.Detect(raw)
	if id.Kind == contract.KindUnknown {
		return contract.Resolution{Identifier: id}, contract.NewValidationError("could not determine identifier type for %q, use a specific search", id.Value)
	}
	res, err := r.ResolveBatch(ctx, []contract.DetectedIdentifier{id})
	if err != nil {
		return contract.Resolution{Identifier: id}, err
	}
	return res[0], nil
}

// ResolveBatch 规划、串行派发并合并，输出与 ids 一一对应、顺序一致。
// Unknown 标识不派发，结果为仅含 warning 的响应。
func (r *Resolver) ResolveBatch(ctx context.Context, ids []contract.DetectedIdentifier) ([]contract.Resolution, error) {
	out := make([]contract.Resolution, len(ids))
	known := make([]contract.DetectedIdentifier, 0, len(ids))
	pos := make([]int, 0, len(ids)) // known[i] 在 ids 中的位置
	for i, id := range ids {
		if id.Kind == contract.KindUnknown {
			out[i] = contract.Resolution{Identifier: id, Response: contract.MappingResponse{Warning: UnknownWarning(id.Value)}}
			continue
		}
		known = append(known, id)
		pos = append(pos, i)
	}
	if len(known) == 0 {
		return out, nil
	}

	ptimer := r.log.Start("planner", "plan", diag.Count(len(known)))
	batches, err := r.comp.Planner.Plan(known, r.tierCap)
	if err != nil {
		ptimer.Fail(err, "plan failed")
		return nil, fmt.Errorf("plan: %w", err)
	}
	ptimer.Finish("planned", len(batches))
	if err := validateAll(batches, func(c contract.Candidate) int { return pos[c.Origin] }); err != nil {
		return nil, err
	}

	outcomes, err := r.dispatch(ctx, len(known), batches)
	if err != nil {
		return nil, err
	}
	merged := r.comp.Merger.Merge(known, outcomes)
	if len(merged) != len(known) {
		return nil, fmt.Errorf("merge: got %d results for %d identifiers", len(merged), len(known))
	}
	for i, m := range merged {
		out[pos[i]] = m
	}
	return out, nil
}

// Report: ResolveText 的结果。
type Report struct {
	Parsed  contract.Parsed       `json:"parsed"`
	Results []contract.Resolution `json:"results"`
}

// Counts 返回命中与未命中数量。
func (rp Report) Counts() (found, notFound int) {
	for _, r := range rp.Results {
		if r.Found() {
			found++
		} else {
			notFound++
		}
	}
	return found, notFound
}

// ResolveText 解析文本后批量解析。
func (r *Resolver) ResolveText(ctx context.Context, text string) (Report, error) {
	p := r.ParseBatch(text)
	res, err := r.ResolveBatch(ctx, p.Identifiers)
	if err != nil {
		return Report{Parsed: p}, err
	}
	return Report{Parsed: p, Results: res}, nil
}

// Search 以显式 idType 检索单个值，可附加过滤字段。值去首尾空白；ticker 大写。
func (r *Resolver) Search(ctx context.Context, idType contract.IDType, value string, f contract.Filters) (contract.MappingResponse, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return contract.MappingResponse{}, contract.NewValidationError("%s: value must be a non-empty string", idType)
	}
	if idType == contract.IDExchSymbol {
		value = strings.ToUpper(value)
	}
	req := contract.MappingRequest{IDType: idType, IDValue: value}
	f.Apply(&req)
	out, err := r.Map(ctx, []contract.MappingRequest{req})
	if err != nil {
		return contract.MappingResponse{}, err
	}
	return out[0], nil
}

// Map 将任意长度的原始请求按档位上限切片后串行派发，返回等长同序的响应。
func (r *Resolver) Map(ctx context.Context, reqs []contract.MappingRequest) ([]contract.MappingResponse, error) {
	if len(reqs) == 0 {
		return nil, contract.NewValidationError("requests must be a non-empty array, provide at least one mapping request")
	}
	var batches []contract.Batch
	for l := 0; l < len(reqs); l += r.tierCap {
		h := min(l+r.tierCap, len(reqs))
		b := make(contract.Batch, 0, h-l)
		for i := l; i < h; i++ {
			b = append(b, contract.Candidate{Request: reqs[i], Origin: i})
		}
		batches = append(batches, b)
	}
	if err := validateAll(batches, func(c contract.Candidate) int { return c.Origin }); err != nil {
		return nil, err
	}
	outcomes, err := r.dispatch(ctx, len(reqs), batches)
	if err != nil {
		return nil, err
	}
	out := make([]contract.MappingResponse, len(reqs))
	for _, o := range outcomes {
		out[o.Origin] = o.Response
	}
	return out, nil
}

// dispatch 串行执行批次；Resolver 级信号量保证同一时刻至多一个派发序列。
func (r *Resolver) dispatch(ctx context.Context, ids int, batches []contract.Batch) ([]contract.Outcome, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	term := diag.GetTerminal()
	term.RunStart(r.name, r.tierCap)
	term.PlanReady(ids, len(batches))
	runStart := time.Now()
	found, errs := 0, 0
	defer func() {
		term.RunFinish(errs == 0, found, ids-found, time.Since(runStart))
	}()

	total := 0
	for _, b := range batches {
		total += len(b)
	}
	outcomes := make([]contract.Outcome, 0, total)
	hits := make(map[int]struct{}, ids)
	for bi, b := range batches {
		if err := ctx.Err(); err != nil {
			errs++
			return nil, err
		}
		timer := r.log.StartBatch(r.name, "map", bi, diag.Count(len(b)))
		resps, err := r.comp.Mapper.Map(ctx, b.Requests())
		if err == nil && len(resps) != len(b) {
			err = &contract.APIError{Msg: fmt.Sprintf("response length mismatch: got %d, want %d", len(resps), len(b))}
		}
		if err != nil {
			errs++
			timer.Fail(err, "map failed")
			term.BatchProgress(bi, len(batches), errs)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("batch %d/%d: %w", bi+1, len(batches), err)
		}
		for i, resp := range resps {
			c := b[i]
			outcomes = append(outcomes, contract.Outcome{Response: resp, Origin: c.Origin, Variant: c.Variant})
			if resp.HasData() {
				hits[c.Origin] = struct{}{}
			}
		}
		found = len(hits)
		timer.Finish("mapped", len(resps))
		term.BatchProgress(bi+1, len(batches), errs)
	}
	r.log.Debug("pipeline", "dispatch done", zap.Int("batches", len(batches)), zap.Int("found", found))
	return outcomes, nil
}

// validateAll 在任何远端调用前校验全部候选；失败索引经 index 换算为调用方输入中的位置。
func validateAll(batches []contract.Batch, index func(contract.Candidate) int) error {
	for _, b := range batches {
		for _, c := range b {
			if ve := contract.ValidateRequest(c.Request); ve != nil {
				ve.Index = index(c)
				return ve
			}
		}
	}
	return nil
}

// sanity 检查必要组件。
func sanity(c Components) error {
	switch {
	case c.Detector == nil:
		return errors.New("detector is nil")
	case c.Planner == nil:
		return errors.New("planner is nil")
	case c.Mapper == nil:
		return errors.New("mapper is nil")
	case c.Merger == nil:
		return errors.New("merger is nil")
	}
	return nil
}

// trackerSource 将 rate.Tracker 适配为 contract.RateLimitSource。
type trackerSource struct{ t *rate.Tracker }

func (s trackerSource) RateLimit() (contract.RateLimitInfo, bool) { return s.t.Current() }
