package openfigi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"figimap/internal/rate"
	"figimap/internal/retry"
	"figimap/pkg/contract"
)

// 默认值。
const (
	DefaultBaseURL      = "https://api.openfigi.com"
	DefaultEndpointPath = "/v3/mapping"
	DefaultAPIKeyEnv    = "OPENFIGI_API_KEY"
	DefaultUserAgent    = "figimap"
	DefaultTimeoutMs    = 30000

	// HeaderAPIKey: 凭据请求头。
	HeaderAPIKey = "X-OPENFIGI-APIKEY"

	maxBodyBytes = 16 << 20
)

// Options: 传输层配置。
type Options struct {
	BaseURL      string `json:"base_url"`      // 默认 https://api.openfigi.com
	EndpointPath string `json:"endpoint_path"` // 默认 /v3/mapping；可为完整 URL
	APIKey       string `json:"api_key"`       // 明文传入（测试/配置文件）
	APIKeyEnv    string `json:"api_key_env"`   // api_key 为空时从该环境变量读取
	UserAgent    string `json:"user_agent"`
	TimeoutMs    int    `json:"timeout_ms"` // 单次 HTTP 尝试的超时
	// RetryLimit: 瞬时失败的重试次数（0..10）；nil 取默认 3。
	RetryLimit      *int `json:"retry_limit,omitempty"`
	RetryDelayMs    int  `json:"retry_delay_ms"`
	MaxRetryDelayMs int  `json:"max_retry_delay_ms"`
	// RequestsPerMinute: 可选本地主动节流；0 表示关闭。
	RequestsPerMinute int `json:"requests_per_minute"`
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.EndpointPath == "" {
		o.EndpointPath = DefaultEndpointPath
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = DefaultAPIKeyEnv
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.TimeoutMs <= 0 {
		o.TimeoutMs = DefaultTimeoutMs
	}
	if o.RetryDelayMs <= 0 {
		o.RetryDelayMs = int(retry.DefaultBaseDelay / time.Millisecond)
	}
	if o.MaxRetryDelayMs <= 0 {
		o.MaxRetryDelayMs = int(retry.DefaultMaxDelay / time.Millisecond)
	}
}

// Client 为映射服务的弹性传输：重试、限流头记录、错误分类。
// 一次 Map 对应一次逻辑调用；重试串行执行，从不并发。
type Client struct {
	hc      *http.Client
	url     string
	apiKey  string
	ua      string
	policy  retry.Policy
	tracker *rate.Tracker
	gate    rate.Gate
	gateKey rate.LimitKey
	log     *zap.Logger

	do    func(*http.Request) (*http.Response, error)
	sleep func(context.Context, time.Duration) error
}

// New 从原样 JSON 选项构造客户端。未配置凭据时以匿名档位运行。
func New(raw json.RawMessage) (*Client, error) {
	var opts Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("openfigi options: %w", err)
		}
	}
	return NewWithOptions(opts)
}

// NewWithOptions 按结构化选项构造客户端。
func NewWithOptions(opts Options) (*Client, error) {
	opts.defaults()
	limit := retry.DefaultLimit
	if opts.RetryLimit != nil {
		limit = *opts.RetryLimit
	}
	if limit < 0 || limit > retry.MaxLimit {
		return nil, contract.NewValidationError("retry_limit must be between 0 and %d, got %d", retry.MaxLimit, limit)
	}
	fullURL := opts.EndpointPath
	if !(strings.HasPrefix(fullURL, "http://") || strings.HasPrefix(fullURL, "https://")) {
		fullURL = strings.TrimRight(opts.BaseURL, "/") + "/" + strings.TrimLeft(opts.EndpointPath, "/")
	}
	key := opts.APIKey
	if key == "" && opts.APIKeyEnv != "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	hc := &http.Client{Timeout: time.Duration(opts.TimeoutMs) * time.Millisecond}
	c := &Client{
		hc:     hc,
		url:    fullURL,
		apiKey: strings.TrimSpace(key),
		ua:     opts.UserAgent,
		policy: retry.Policy{
			Limit:     limit,
			BaseDelay: time.Duration(opts.RetryDelayMs) * time.Millisecond,
			MaxDelay:  time.Duration(opts.MaxRetryDelayMs) * time.Millisecond,
		},
		tracker: rate.Default,
		log:     zap.NewNop(),
		do:      hc.Do,
		sleep:   retry.Sleep,
	}
	if opts.RequestsPerMinute > 0 {
		c.gateKey = rate.DeriveKey(opts.BaseURL, c.apiKey)
		c.gate = rate.NewGate(map[rate.LimitKey]rate.Limits{c.gateKey: {RPM: opts.RequestsPerMinute}}, nil)
	}
	return c, nil
}

// SetLogger 注入日志器；nil 时忽略。
func (c *Client) SetLogger(l *zap.Logger) {
	if l != nil {
		c.log = l.With(zap.String("comp", "mapper.openfigi"))
	}
}

// SetTracker 替换限流快照单元（默认进程级 rate.Default）。
func (c *Client) SetTracker(t *rate.Tracker) {
	if t != nil {
		c.tracker = t
	}
}

// HasCredential 报告是否配置了凭据。
func (c *Client) HasCredential() bool { return c.apiKey != "" }

// TierCap 实现 contract.TierAware。
func (c *Client) TierCap() int { return contract.TierCap(c.HasCredential()) }

// RateLimit 实现 contract.RateLimitSource。
func (c *Client) RateLimit() (contract.RateLimitInfo, bool) { return c.tracker.Current() }

// Map 发送一批请求，返回等长同序的响应。
// 批长度仅按协议绝对上下限校验；违反时不发起网络调用。
func (c *Client) Map(ctx context.Context, reqs []contract.MappingRequest) ([]contract.MappingResponse, error) {
	if err := contract.ValidateBatch(reqs); err != nil {
		return nil, err
	}
	body, err := json.Marshal(reqs)
	if err != nil {
		return nil, contract.NewValidationError("encode requests: %v", err)
	}

	for attempt := 0; ; attempt++ {
		if c.gate != nil {
			if err := c.gate.Wait(ctx, c.gateKey, 1); err != nil {
				return nil, err
			}
		}
		c.log.Debug("mapping attempt", zap.Int("attempt", attempt+1), zap.Int("count", len(reqs)))
		status, hdr, payload, err := c.send(ctx, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if attempt < c.policy.Limit {
				if werr := c.backoff(ctx, attempt, zap.Error(err)); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, &contract.APIError{Msg: "request failed", Err: err}
		}
		if c.tracker.Observe(hdr) {
			info, _ := c.tracker.Current()
			c.log.Debug("rate limit observed", zap.Int("limit", info.Limit), zap.Int("remaining", info.Remaining), zap.Time("reset", info.Reset))
		}
		if status/100 == 2 {
			return decode(status, payload, len(reqs))
		}
		if retry.Transient(status) && attempt < c.policy.Limit {
			if werr := c.backoff(ctx, attempt, zap.Int("status", status)); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, statusError(status, hdr, payload)
	}
}

// send 执行一次 HTTP 尝试并读完响应体。
func (c *Client) send(ctx context.Context, body []byte) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, payload, nil
}

func (c *Client) backoff(ctx context.Context, attempt int, cause zap.Field) error {
	d := c.policy.Delay(attempt)
	c.log.Warn("transient failure, retrying",
		cause,
		zap.Int("attempt", attempt+1),
		zap.Int("retry_limit", c.policy.Limit),
		zap.Duration("backoff", d),
	)
	return c.sleep(ctx, d)
}

// decode 解析 2xx 响应体；非数组或条数不符视为协议违约。
func decode(status int, payload []byte, want int) ([]contract.MappingResponse, error) {
	var out []contract.MappingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &contract.APIError{Status: status, Msg: "unexpected response format, expected an array", Body: snippet(payload), Err: err}
	}
	if out == nil {
		return nil, &contract.APIError{Status: status, Msg: "unexpected response format, expected an array", Body: snippet(payload)}
	}
	if len(out) != want {
		return nil, &contract.APIError{Status: status, Msg: fmt.Sprintf("response length mismatch: got %d, want %d", len(out), want), Body: snippet(payload)}
	}
	return out, nil
}

// statusError 将重试耗尽或不可重试的非 2xx 状态映射为错误分类。
func statusError(status int, hdr http.Header, payload []byte) error {
	body := snippet(payload)
	switch status {
	case http.StatusTooManyRequests:
		e := &contract.RateLimitError{Status: status}
		if s := strings.TrimSpace(hdr.Get("Retry-After")); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				e.RetryAfter, e.HasRetryAfter = n, true
			}
		}
		return e
	case http.StatusBadRequest:
		return &contract.ValidationError{Msg: "bad request", Index: -1, Detail: body}
	case http.StatusUnauthorized:
		return &contract.APIError{Status: status, Msg: "authentication failed, check the API key", Body: body}
	case http.StatusNotFound:
		return &contract.APIError{Status: status, Msg: "endpoint not found, check the base URL", Body: body}
	default:
		return &contract.APIError{Status: status, Msg: "request failed", Body: body}
	}
}

func snippet(b []byte) string {
	const max = 4 << 10
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		// 回退到 rune 起始字节，避免截断多字节字符
		n := max
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}

var (
	_ contract.Mapper          = (*Client)(nil)
	_ contract.RateLimitSource = (*Client)(nil)
	_ contract.TierAware       = (*Client)(nil)
)
