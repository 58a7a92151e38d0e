package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figimap/internal/diag"
	"figimap/pkg/contract"
)

// UT-CFG-01: 解析完整 YAML 配置
func TestLoadYAML(t *testing.T) {
	cfg, err := Load("../../testdata/config/basic.yaml", nil)
	require.NoError(t, err, "加载失败")
	assert.Equal(t, "mock", cfg.Mapper)
	assert.Equal(t, 0, cfg.RetryLimit, "显式 0 应保留")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []any{"Common Stock", "ADR"}, cfg.Options.Planner["ticker_variants"])

	merged := Merge(Defaults(), cfg)
	require.NoError(t, Validate(merged), "校验失败")
	assert.Equal(t, "pattern", merged.Components.Detector, "未配置组件应取默认")
	assert.Equal(t, 0, merged.RetryLimit)
}

// UT-CFG-02: 未出现的 retry_limit 不覆盖默认值
func TestLoadRetryLimitUnset(t *testing.T) {
	cfg, err := Load("", []byte("timeout_ms: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, RetryLimitUnset, cfg.RetryLimit)
	assert.Equal(t, 3, Merge(Defaults(), cfg).RetryLimit)

	empty, err := Load("", []byte("# only a comment\n"))
	require.NoError(t, err, "空文档应等价于空覆盖")
	assert.Equal(t, Defaults(), Merge(Defaults(), empty))
}

// UT-CFG-02b: 负的 retry_limit 不得被当作“未设置”吞掉
func TestNegativeRetryLimitRejected(t *testing.T) {
	fromYAML, err := Load("", []byte("retry_limit: -7\n"))
	require.NoError(t, err)
	merged := Merge(Defaults(), fromYAML)
	assert.Equal(t, -7, merged.RetryLimit)
	assert.True(t, errors.Is(Validate(merged), contract.ErrValidation), "YAML 负值应校验失败")

	for _, v := range []string{"-1", "-5"} {
		over, err := EnvOverlay([]string{"FIGIMAP_RETRY_LIMIT=" + v})
		require.NoError(t, err)
		merged = Merge(Defaults(), over)
		assert.True(t, errors.Is(Validate(merged), contract.ErrValidation), "ENV %s 应校验失败", v)
	}
}

// UT-CFG-03: 含非法字段
func TestLoadUnknownField(t *testing.T) {
	_, err := Load("", []byte("unknown: 1\n"))
	assert.Error(t, err, "应当返回错误")
	_, err = Load("", nil)
	assert.Error(t, err, "无配置源应报错")
}

// UT-CFG-04: ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"OPENFIGI_API_KEY=from-openfigi",
		"FIGIMAP_BASE_URL=http://localhost:8080",
		"FIGIMAP_RETRY_LIMIT=0",
		"FIGIMAP_TIMEOUT_MS=500",
		"FIGIMAP_MAPPER=mock",
		"FIGIMAP_LOG_DIR=/tmp/figimap",
		"FIGIMAP_COMPONENTS_PLANNER=variant",
		`FIGIMAP_OPTIONS__PLANNER__JSON={"skip_unknown":true}`,
		"FIGIMAP_UNRELATED=x",
		"PATH=/usr/bin",
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err, "EnvOverlay 错误")
	assert.Equal(t, "from-openfigi", over.APIKey, "OPENFIGI_API_KEY 应作为凭据后备")
	assert.Equal(t, "http://localhost:8080", over.BaseURL)
	assert.Equal(t, 0, over.RetryLimit)
	assert.Equal(t, 500, over.TimeoutMs)
	assert.Equal(t, "mock", over.Mapper)
	assert.Equal(t, "/tmp/figimap", over.Logging.Dir)
	assert.Equal(t, true, over.Options.Planner["skip_unknown"])

	over, err = EnvOverlay([]string{"OPENFIGI_API_KEY=a", "FIGIMAP_API_KEY=b"})
	require.NoError(t, err)
	assert.Equal(t, "b", over.APIKey, "FIGIMAP_API_KEY 优先")
	assert.Equal(t, RetryLimitUnset, over.RetryLimit, "未设置时应为 RetryLimitUnset")

	_, err = EnvOverlay([]string{"FIGIMAP_RETRY_LIMIT=three"})
	assert.Error(t, err, "非整数应报错")
	_, err = EnvOverlay([]string{"FIGIMAP_OPTIONS__MAPPER__JSON={bad"})
	assert.Error(t, err, "非法 JSON 应报错")
}

// UT-CFG-05: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
	cases := map[string]func(*Config){
		"非 URL":         func(c *Config) { c.BaseURL = "api.openfigi.com" },
		"重试超上限":         func(c *Config) { c.RetryLimit = 11 },
		"重试为负":          func(c *Config) { c.RetryLimit = -1 },
		"超时为 0":         func(c *Config) { c.TimeoutMs = 0 },
		"退避为 0":         func(c *Config) { c.RetryDelayMs = 0 },
		"最大退避过小":        func(c *Config) { c.MaxRetryDelayMs = 10 },
		"未知日志等级":        func(c *Config) { c.Logging.Level = "trace" },
		"未注册 mapper":    func(c *Config) { c.Mapper = "bloomberg" },
		"未注册 planner":   func(c *Config) { c.Components.Planner = "nope" },
		"节流为负":          func(c *Config) { c.RequestsPerMinute = -1 },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			c := Defaults()
			mut(&c)
			err := Validate(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, contract.ErrValidation), "应为校验错误: %v", err)
		})
	}
}

// UT-CFG-06: openfigi 选项由顶层字段生成
func TestMapperOptions(t *testing.T) {
	c := Defaults()
	c.APIKey = "k"
	c.RetryLimit = 0
	c.Options.Mapper = map[string]any{"endpoint_path": "/v3/mapping", "retry_limit": 9}
	raw, err := MapperOptions(c)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "k", got["api_key"])
	assert.Equal(t, float64(0), got["retry_limit"], "顶层字段覆盖 options")
	assert.Equal(t, "/v3/mapping", got["endpoint_path"])

	c.Mapper = "mock"
	c.Options.Mapper = nil
	raw, err = MapperOptions(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_key":"k"}`, string(raw))
}

// UT-CFG-07: 装配 mock 并端到端解析
func TestAssembleMock(t *testing.T) {
	cfg, err := Load("../../testdata/config/basic.yaml", nil)
	require.NoError(t, err)
	r, err := Assemble(Merge(Defaults(), cfg), diag.Nop())
	require.NoError(t, err, "装配失败")
	assert.Equal(t, contract.TierCapWithKey, r.TierCap(), "有凭据应为 100")

	res, err := r.ResolveOne(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.Equal(t, "Common Stock", res.Variant)

	info, ok := r.RateLimitSnapshot()
	require.True(t, ok)
	assert.Equal(t, 25, info.Limit)

	bad := Merge(Defaults(), cfg)
	bad.Options.Planner = map[string]any{"bogus": 1}
	_, err = Assemble(bad, nil)
	assert.Error(t, err, "未知 planner 选项应失败")
}

// UT-CFG-08: 模板可被严格解析且不覆盖已有文件
func TestWriteTemplates(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteTemplates(dir)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	cfg, err := Load(filepath.Join(dir, TemplateConfigName), nil)
	require.NoError(t, err, "模板应可严格解析")
	require.NoError(t, Validate(Merge(Defaults(), cfg)))

	env, err := os.ReadFile(filepath.Join(dir, TemplateEnvName))
	require.NoError(t, err)
	assert.Contains(t, string(env), "FIGIMAP_RETRY_LIMIT=")
	assert.Contains(t, string(env), "OPENFIGI_API_KEY=")

	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateEnvName), []byte("KEEP=1\n"), 0o644))
	paths, err = WriteTemplates(dir)
	require.NoError(t, err)
	assert.Empty(t, paths, "已存在文件应跳过")
	env, _ = os.ReadFile(filepath.Join(dir, TemplateEnvName))
	assert.Equal(t, "KEEP=1\n", string(env))
}
