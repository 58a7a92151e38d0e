package flaky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"figimap/pkg/contract"
	"figimap/plugins/mapper/mock"
)

// Options 定义可选项。
type Options struct {
	// FailCalls: 前 N 次调用失败，默认 1。
	FailCalls int `json:"fail_calls"`
	// Failure: 失败形态：rate_limit（默认）| api | network。
	Failure string `json:"failure"`
	// Mock: 成功调用时委托给 mock 的原样选项。
	Mock json.RawMessage `json:"mock,omitempty"`
	// LogPath: 调试用日志文件，记录每次调用结果（可选）。
	LogPath string `json:"log_path,omitempty"`
}

// Client 是带状态的 Mapper：前 FailCalls 次返回脚本化失败，之后委托 mock。
// 用于演练“单批失败中止后续批次”的路径。
type Client struct {
	failN   int32
	failure string
	logPath string
	inner   *mock.Client
	count   atomic.Int32
}

// ErrNetwork: network 形态下作为 APIError 的底层原因。
var ErrNetwork = errors.New("flaky: connection reset")

// New 构造 Client。
func New(raw json.RawMessage) (*Client, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	if o.FailCalls <= 0 {
		o.FailCalls = 1
	}
	switch o.Failure {
	case "":
		o.Failure = "rate_limit"
	case "rate_limit", "api", "network":
	default:
		return nil, fmt.Errorf("flaky: unknown failure %q", o.Failure)
	}
	inner, err := mock.New(o.Mock)
	if err != nil {
		return nil, err
	}
	return &Client{failN: int32(o.FailCalls), failure: o.Failure, logPath: o.LogPath, inner: inner}, nil
}

func (c *Client) log(s string) {
	if c.logPath == "" {
		return
	}
	_ = appendFile(c.logPath, s+"\n")
}

// appendFile 以追加方式写入。
func appendFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

// Map 实现 contract.Mapper。
func (c *Client) Map(ctx context.Context, reqs []contract.MappingRequest) ([]contract.MappingResponse, error) {
	if c.count.Add(1) <= c.failN {
		c.log(c.failure)
		switch c.failure {
		case "api":
			return nil, &contract.APIError{Status: 500, Msg: "request failed", Body: "flaky"}
		case "network":
			return nil, &contract.APIError{Msg: "request failed", Err: ErrNetwork}
		default:
			return nil, &contract.RateLimitError{Status: 429}
		}
	}
	c.log("ok")
	return c.inner.Map(ctx, reqs)
}

// Calls 返回累计调用次数（含失败）。
func (c *Client) Calls() int { return int(c.count.Load()) }

// TierCap 实现 contract.TierAware。
func (c *Client) TierCap() int { return c.inner.TierCap() }

// RateLimit 实现 contract.RateLimitSource；快照来自内部 mock。
func (c *Client) RateLimit() (contract.RateLimitInfo, bool) { return c.inner.RateLimit() }

var (
	_ contract.Mapper          = (*Client)(nil)
	_ contract.TierAware       = (*Client)(nil)
	_ contract.RateLimitSource = (*Client)(nil)
)
