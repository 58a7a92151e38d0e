package contract

import "context"

// 协议绝对上下限：单次调用 1..MaxRequestsPerCall 条请求，与调用方档位无关。
const (
	MaxRequestsPerCall = 100
	// TierCapWithKey / TierCapAnonymous: 按是否配置凭据区分的单次调用条数上限。
	TierCapWithKey   = 100
	TierCapAnonymous = 10
)

// TierCap 返回凭据存在与否对应的档位上限。
func TierCap(hasCredential bool) int {
	if hasCredential {
		return TierCapWithKey
	}
	return TierCapAnonymous
}

// Mapper: 以批为单位与远端映射服务交互。
// 约束：
//  1. 一次 Map 至多一次“逻辑调用”（内部重试对调用方透明）；
//  2. 返回的响应条数与请求条数相同、顺序一致；否则返回 APIError；
//  3. 批长度仅按协议绝对上下限（1..100）校验，不按档位上限重复校验；
//  4. 应尊重 ctx 取消/超时。
type Mapper interface {
	Map(ctx context.Context, reqs []MappingRequest) ([]MappingResponse, error)
}

// RateLimitSource: 可选接口，暴露最近一次限流快照（首次成功调用前为 false）。
type RateLimitSource interface {
	RateLimit() (RateLimitInfo, bool)
}

// TierAware: 可选接口，由 Mapper 报告自身凭据对应的档位上限。
type TierAware interface {
	TierCap() int
}
