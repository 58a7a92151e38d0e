package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"figimap/pkg/contract"
)

// Options: 离线调试配置。
type Options struct {
	// Fixtures: 键为 idValue 或 "idValue|securityType2"，后者优先匹配。
	// 为空时使用内置样例。
	Fixtures map[string][]contract.FigiResult `json:"fixtures,omitempty"`
	// APIKey: 仅决定档位上限（非空为 100，否则 10），不参与任何网络请求。
	APIKey string `json:"api_key"`
	// RateLimit: 每次调用后写入的模拟限流额度；0 表示不模拟。
	RateLimit int `json:"rate_limit"`
}

// Client 为无网络的 Mapper：按 fixture 返回 data，未命中返回 warning。
type Client struct {
	fixtures map[string][]contract.FigiResult
	hasKey   bool
	limit    int

	mu    sync.Mutex
	calls int
	last  *contract.RateLimitInfo
	now   func() time.Time
}

// NotFound: 未命中时的 warning 文本。
const NotFound = "No identifier found."

func builtinFixtures() map[string][]contract.FigiResult {
	apple := contract.FigiResult{
		FIGI: "BBG000B9XRY4", Name: "APPLE INC", Ticker: "AAPL", ExchCode: "US",
		MarketSector: contract.SectorEquity, SecurityType: contract.SecCommonStock, SecurityType2: "Common Stock",
		CompositeFIGI: "BBG000B9XRY4", ShareClassFIGI: "BBG001S5N8V8",
	}
	return map[string][]contract.FigiResult{
		"AAPL|Common Stock": {apple},
		"BBG000B9XRY4":      {apple},
		"US0378331005":      {apple},
		"037833100":         {apple},
		"2046251":           {apple},
	}
}

// New 构造 Client。
func New(raw json.RawMessage) (*Client, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("mock options: %w", err)
		}
	}
	fx := o.Fixtures
	if len(fx) == 0 {
		fx = builtinFixtures()
	}
	return &Client{fixtures: fx, hasKey: o.APIKey != "", limit: o.RateLimit, now: time.Now}, nil
}

// Map 实现 contract.Mapper。
func (c *Client) Map(ctx context.Context, reqs []contract.MappingRequest) ([]contract.MappingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := contract.ValidateBatch(reqs); err != nil {
		return nil, err
	}
	out := make([]contract.MappingResponse, len(reqs))
	for i, r := range reqs {
		if d, ok := c.lookup(r); ok {
			out[i] = contract.MappingResponse{Data: d}
			continue
		}
		out[i] = contract.MappingResponse{Warning: NotFound}
	}
	c.mu.Lock()
	c.calls++
	if c.limit > 0 {
		rem := c.limit - c.calls
		if rem < 0 {
			rem = 0
		}
		c.last = &contract.RateLimitInfo{Limit: c.limit, Remaining: rem, Reset: c.now().Add(time.Minute).Truncate(time.Second).UTC()}
	}
	c.mu.Unlock()
	return out, nil
}

func (c *Client) lookup(r contract.MappingRequest) ([]contract.FigiResult, bool) {
	v := strings.TrimSpace(r.IDValue)
	if r.SecurityType2 != "" {
		if d, ok := c.fixtures[v+"|"+r.SecurityType2]; ok {
			return d, true
		}
		// 带变体的请求仅匹配带变体的 fixture
		return nil, false
	}
	d, ok := c.fixtures[v]
	return d, ok
}

// Calls 返回累计调用次数。
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// TierCap 实现 contract.TierAware。
func (c *Client) TierCap() int { return contract.TierCap(c.hasKey) }

// RateLimit 实现 contract.RateLimitSource。
func (c *Client) RateLimit() (contract.RateLimitInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return contract.RateLimitInfo{}, false
	}
	return *c.last, true
}

var (
	_ contract.Mapper          = (*Client)(nil)
	_ contract.TierAware       = (*Client)(nil)
	_ contract.RateLimitSource = (*Client)(nil)
)
