package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"figimap/internal/diag"
	"figimap/internal/pipeline"
	"figimap/internal/retry"
	"figimap/pkg/contract"
	"figimap/pkg/registry"
)

var logLevels = map[string]struct{}{"": {}, "debug": {}, "info": {}, "warn": {}, "error": {}}

// Validate 对最小必要边界做静态校验；失败返回 *contract.ValidationError。
func Validate(cfg Config) error {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return contract.NewValidationError("config: base_url must be an absolute http(s) URL, got %q", cfg.BaseURL)
	}
	if cfg.TimeoutMs <= 0 {
		return contract.NewValidationError("config: timeout_ms must be > 0")
	}
	if cfg.RetryLimit < 0 || cfg.RetryLimit > retry.MaxLimit {
		return contract.NewValidationError("config: retry_limit must be between 0 and %d, got %d", retry.MaxLimit, cfg.RetryLimit)
	}
	if cfg.RetryDelayMs <= 0 {
		return contract.NewValidationError("config: retry_delay_ms must be > 0")
	}
	if cfg.MaxRetryDelayMs < cfg.RetryDelayMs {
		return contract.NewValidationError("config: max_retry_delay_ms(%d) must be >= retry_delay_ms(%d)", cfg.MaxRetryDelayMs, cfg.RetryDelayMs)
	}
	if cfg.RequestsPerMinute < 0 {
		return contract.NewValidationError("config: requests_per_minute must be >= 0")
	}
	if _, ok := logLevels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))]; !ok {
		return contract.NewValidationError("config: logging.level %q not one of debug|info|warn|error", cfg.Logging.Level)
	}
	d := Defaults()
	if name := effName(cfg.Mapper, d.Mapper); registry.Mapper[name] == nil {
		return contract.NewValidationError("config: mapper %q not registered", name)
	}
	if name := effName(cfg.Components.Detector, d.Components.Detector); registry.Detector[name] == nil {
		return contract.NewValidationError("config: detector %q not registered", name)
	}
	if name := effName(cfg.Components.Planner, d.Components.Planner); registry.Planner[name] == nil {
		return contract.NewValidationError("config: planner %q not registered", name)
	}
	if name := effName(cfg.Components.Merger, d.Components.Merger); registry.Merger[name] == nil {
		return contract.NewValidationError("config: merger %q not registered", name)
	}
	return nil
}

// MapperOptions 生成 Mapper 工厂的原样 JSON 选项。
// openfigi：以 options.mapper 为底，顶层字段覆盖；mock：未指定 api_key 时继承顶层凭据。
func MapperOptions(cfg Config) (json.RawMessage, error) {
	name := effName(cfg.Mapper, Defaults().Mapper)
	m := cloneMap(cfg.Options.Mapper)
	if m == nil {
		m = map[string]any{}
	}
	switch name {
	case "openfigi":
		m["base_url"] = cfg.BaseURL
		m["timeout_ms"] = cfg.TimeoutMs
		m["retry_limit"] = cfg.RetryLimit
		m["retry_delay_ms"] = cfg.RetryDelayMs
		m["max_retry_delay_ms"] = cfg.MaxRetryDelayMs
		m["user_agent"] = cfg.UserAgent
		m["requests_per_minute"] = cfg.RequestsPerMinute
		if cfg.APIKey != "" {
			m["api_key"] = cfg.APIKey
		}
	case "mock":
		if _, ok := m["api_key"]; !ok && cfg.APIKey != "" {
			m["api_key"] = cfg.APIKey
		}
	}
	return json.Marshal(m)
}

// Assemble 校验配置并构造 Resolver。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config, log *diag.Logger) (*pipeline.Resolver, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	d := Defaults()
	pn := effName(cfg.Components.Planner, d.Components.Planner)
	mn := effName(cfg.Components.Merger, d.Components.Merger)
	xn := effName(cfg.Mapper, d.Mapper)

	det, err := BuildDetector(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := rawJSON(cfg.Options.Planner)
	if err != nil {
		return nil, fmt.Errorf("planner %s: %w", pn, err)
	}
	pl, err := registry.Planner[pn](raw)
	if err != nil {
		return nil, fmt.Errorf("planner %s: %w", pn, err)
	}
	if raw, err = rawJSON(cfg.Options.Merger); err != nil {
		return nil, fmt.Errorf("merger %s: %w", mn, err)
	}
	mg, err := registry.Merger[mn](raw)
	if err != nil {
		return nil, fmt.Errorf("merger %s: %w", mn, err)
	}
	if raw, err = MapperOptions(cfg); err != nil {
		return nil, fmt.Errorf("mapper %s: %w", xn, err)
	}
	mp, err := registry.Mapper[xn](raw)
	if err != nil {
		return nil, fmt.Errorf("mapper %s: %w", xn, err)
	}
	if l, ok := mp.(interface{ SetLogger(*zap.Logger) }); ok {
		l.SetLogger(log.Zap())
	}

	return pipeline.New(pipeline.Components{
		Detector: det,
		Planner:  pl,
		Mapper:   mp,
		Merger:   mg,
	}, pipeline.Settings{MapperName: xn, Logger: log})
}

// BuildDetector 仅按配置构造检测器；离线命令无需完整装配。
func BuildDetector(cfg Config) (contract.Detector, error) {
	dn := effName(cfg.Components.Detector, Defaults().Components.Detector)
	f, ok := registry.Detector[dn]
	if !ok {
		return nil, contract.NewValidationError("config: detector %q not registered", dn)
	}
	raw, err := rawJSON(cfg.Options.Detector)
	if err != nil {
		return nil, fmt.Errorf("detector %s: %w", dn, err)
	}
	det, err := f(raw)
	if err != nil {
		return nil, fmt.Errorf("detector %s: %w", dn, err)
	}
	return det, nil
}

// rawJSON 将 YAML 解出的选项子树转为 JSON；空子树返回 nil（工厂使用默认值）。
func rawJSON(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return strings.TrimSpace(got)
}
