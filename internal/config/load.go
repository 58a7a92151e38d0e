package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"figimap/internal/retry"
	"figimap/plugins/mapper/openfigi"
)

// 环境变量前缀；凭据另可经 OPENFIGI_API_KEY 提供。
const (
	EnvPrefix = "FIGIMAP_"
	EnvAPIKey = openfigi.DefaultAPIKeyEnv
)

// RetryLimitUnset 标记覆盖层未设置 retry_limit。任何负数（含 -1）都是显式取值，交由 Validate 拒绝。
const RetryLimitUnset = math.MinInt32

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		BaseURL:         openfigi.DefaultBaseURL,
		TimeoutMs:       openfigi.DefaultTimeoutMs,
		RetryLimit:      retry.DefaultLimit,
		RetryDelayMs:    int(retry.DefaultBaseDelay.Milliseconds()),
		MaxRetryDelayMs: int(retry.DefaultMaxDelay.Milliseconds()),
		UserAgent:       openfigi.DefaultUserAgent,
		Mapper:          "openfigi",
		Logging:         Logging{Level: "info"},
		Components: Components{
			Detector: "pattern",
			Planner:  "variant",
			Merger:   "firstdata",
		},
	}
}

// Load 从文件路径或原始 YAML 解析 Config（严格拒绝未知字段）。
// 未出现的 retry_limit 保持 RetryLimitUnset，以便 Merge 区分“未覆盖”和“显式设置为 0”。
func Load(path string, raw []byte) (Config, error) {
	cfg := Config{RetryLimit: RetryLimitUnset}
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// 空文件等价于空覆盖
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/选项子树为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.APIKey); s != "" {
		out.APIKey = s
	}
	if s := strings.TrimSpace(over.BaseURL); s != "" {
		out.BaseURL = s
	}
	if over.TimeoutMs != 0 {
		out.TimeoutMs = over.TimeoutMs
	}
	// RetryLimit 的 0 具有语义（禁用重试），未设置以 RetryLimitUnset 区分。
	if over.RetryLimit != RetryLimitUnset {
		out.RetryLimit = over.RetryLimit
	}
	if over.RetryDelayMs != 0 {
		out.RetryDelayMs = over.RetryDelayMs
	}
	if over.MaxRetryDelayMs != 0 {
		out.MaxRetryDelayMs = over.MaxRetryDelayMs
	}
	if s := strings.TrimSpace(over.UserAgent); s != "" {
		out.UserAgent = s
	}
	if over.RequestsPerMinute != 0 {
		out.RequestsPerMinute = over.RequestsPerMinute
	}
	if s := strings.TrimSpace(over.Mapper); s != "" {
		out.Mapper = s
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	// 组件名（空不覆盖）
	if over.Components.Detector != "" {
		out.Components.Detector = over.Components.Detector
	}
	if over.Components.Planner != "" {
		out.Components.Planner = over.Components.Planner
	}
	if over.Components.Merger != "" {
		out.Components.Merger = over.Components.Merger
	}

	// Options（完整替换对应键）
	if len(over.Options.Detector) > 0 {
		out.Options.Detector = cloneMap(over.Options.Detector)
	}
	if len(over.Options.Planner) > 0 {
		out.Options.Planner = cloneMap(over.Options.Planner)
	}
	if len(over.Options.Mapper) > 0 {
		out.Options.Mapper = cloneMap(over.Options.Mapper)
	}
	if len(over.Options.Merger) > 0 {
		out.Options.Merger = cloneMap(over.Options.Merger)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 FIGIMAP_；集合之外的键忽略。OPENFIGI_API_KEY 作为凭据后备，FIGIMAP_API_KEY 优先。
// 支持：API_KEY, BASE_URL, TIMEOUT_MS, RETRY_LIMIT, RETRY_DELAY_MS, MAX_RETRY_DELAY_MS, USER_AGENT,
// REQUESTS_PER_MINUTE, MAPPER, LOG_LEVEL, LOG_DIR, COMPONENTS_*, OPTIONS__<comp>__JSON
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	over.RetryLimit = RetryLimitUnset
	var fallbackKey string
	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			continue
		}
		key, val := kv[:eq], kv[eq+1:]
		if key == EnvAPIKey {
			fallbackKey = strings.TrimSpace(val)
			continue
		}
		if !strings.HasPrefix(key, EnvPrefix) || len(key) == len(EnvPrefix) {
			continue
		}
		nk := strings.TrimPrefix(key, EnvPrefix)
		var err error
		switch nk {
		case "API_KEY":
			over.APIKey = strings.TrimSpace(val)
		case "BASE_URL":
			over.BaseURL = strings.TrimSpace(val)
		case "TIMEOUT_MS":
			over.TimeoutMs, err = atoiEnv(nk, val, 0)
		case "RETRY_LIMIT":
			over.RetryLimit, err = atoiEnv(nk, val, RetryLimitUnset)
		case "RETRY_DELAY_MS":
			over.RetryDelayMs, err = atoiEnv(nk, val, 0)
		case "MAX_RETRY_DELAY_MS":
			over.MaxRetryDelayMs, err = atoiEnv(nk, val, 0)
		case "USER_AGENT":
			over.UserAgent = strings.TrimSpace(val)
		case "REQUESTS_PER_MINUTE":
			over.RequestsPerMinute, err = atoiEnv(nk, val, 0)
		case "MAPPER":
			over.Mapper = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "COMPONENTS_DETECTOR":
			over.Components.Detector = strings.TrimSpace(val)
		case "COMPONENTS_PLANNER":
			over.Components.Planner = strings.TrimSpace(val)
		case "COMPONENTS_MERGER":
			over.Components.Merger = strings.TrimSpace(val)
		default:
			// OPTIONS__<comp>__JSON：原样 JSON；空值视为未设置
			if strings.HasPrefix(nk, "OPTIONS__") && strings.HasSuffix(nk, "__JSON") {
				comp := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(nk, "OPTIONS__"), "__JSON"))
				err = setOptionsJSON(&over.Options, comp, val)
			}
		}
		if err != nil {
			return Config{}, err
		}
	}
	if over.APIKey == "" {
		over.APIKey = fallbackKey
	}
	return over, nil
}

func setOptionsJSON(o *Options, comp, val string) error {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return fmt.Errorf("config: %sOPTIONS__%s__JSON: %w", EnvPrefix, strings.ToUpper(comp), err)
	}
	switch comp {
	case "detector":
		o.Detector = m
	case "planner":
		o.Planner = m
	case "mapper":
		o.Mapper = m
	case "merger":
		o.Merger = m
	}
	return nil
}

// atoiEnv 解析整数；空值返回 unset。
func atoiEnv(name, s string, unset int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return unset, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return unset, fmt.Errorf("config: %s%s: not an integer: %q", EnvPrefix, name, s)
	}
	return n, nil
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
