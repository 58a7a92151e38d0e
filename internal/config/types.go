package config

// Config: 运行期只读配置（一次解析，运行期不变）。
// YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// APIKey: OpenFIGI 凭据；为空时以匿名档位运行（每批上限 10）。
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// TimeoutMs: 单次 HTTP 尝试的超时。
	TimeoutMs int `yaml:"timeout_ms"`
	// RetryLimit: 瞬时失败的最大重试次数（0..10）。0 表示不重试；RetryLimitUnset 表示覆盖层未设置。
	RetryLimit      int    `yaml:"retry_limit"`
	RetryDelayMs    int    `yaml:"retry_delay_ms"`
	MaxRetryDelayMs int    `yaml:"max_retry_delay_ms"`
	UserAgent       string `yaml:"user_agent"`
	// RequestsPerMinute: 客户端侧节流；0 关闭。
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Mapper: 注册表中的传输实现名（openfigi|mock|flaky）。
	Mapper  string  `yaml:"mapper"`
	Logging Logging `yaml:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `yaml:"components"`

	// 各组件 Options 子树，转为 JSON 后原样传入工厂。
	Options Options `yaml:"options"`
}

// Logging: 日志等级与可选的轮转文件目录（空则写 stderr）。
type Logging struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Detector string `yaml:"detector"`
	Planner  string `yaml:"planner"`
	Merger   string `yaml:"merger"`
}

// Options: 各组件的原样选项。openfigi 的选项由顶层字段生成，Mapper 子树仅供 mock/flaky 使用。
type Options struct {
	Detector map[string]any `yaml:"detector,omitempty"`
	Planner  map[string]any `yaml:"planner,omitempty"`
	Mapper   map[string]any `yaml:"mapper,omitempty"`
	Merger   map[string]any `yaml:"merger,omitempty"`
}
