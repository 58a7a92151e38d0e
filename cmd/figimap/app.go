package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	cfgpkg "figimap/internal/config"
	"figimap/internal/diag"
	"figimap/internal/pipeline"
	"figimap/internal/render"
	"figimap/pkg/contract"
)

// assemble 为装配入口；测试可替换。
var assemble = cfgpkg.Assemble

// globalFlags: 全局旗标（CLI 覆盖层）。
type globalFlags struct {
	config        string
	apiKey        string
	baseURL       string
	mapper        string
	logLevel      string
	retryLimit    int
	timeoutMs     int
	json          bool
	showRateLimit bool
	status        bool
	initDir       string
}

// app 持有一次 CLI 运行的共享状态；Resolver 与日志器按需构造。
type app struct {
	corrID string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	flags  globalFlags
	// flagChanged 报告全局旗标是否被显式设置。
	flagChanged func(name string) bool

	log  *diag.Logger
	res  *pipeline.Resolver
	term *diag.Terminal
}

func newApp(corrID string, stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{corrID: corrID, stdin: stdin, stdout: stdout, stderr: stderr}
}

// logger 返回当前日志器；配置加载前为 Nop。
func (a *app) logger() *diag.Logger {
	if a.log == nil {
		return diag.Nop()
	}
	return a.log
}

func (a *app) close() {
	if a.term != nil {
		diag.SetTerminal(nil)
	}
	if a.log != nil {
		// debug: 进程内计数汇总
		for _, m := range diag.Metrics() {
			a.log.Debug("metrics", m.Name, zap.Int64("value", m.Value))
		}
		_ = a.log.Sync()
		_ = a.log.Close()
	}
}

// loadConfig 按优先级合并：Defaults < YAML < ENV < CLI。
func (a *app) loadConfig() (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	path := a.flags.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	var raw []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_YAML"); s != "" {
		raw = []byte(s)
	}
	// 默认读取工作目录下 figimap.yaml（若存在）
	if path == "" && len(raw) == 0 {
		if _, err := os.Stat(cfgpkg.TemplateConfigName); err == nil {
			path = cfgpkg.TemplateConfigName
		}
	}
	if path != "" || len(raw) > 0 {
		base, err := cfgpkg.Load(path, raw)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	retryLimit := cfgpkg.RetryLimitUnset
	if a.flagChanged != nil && a.flagChanged("retry-limit") {
		retryLimit = a.flags.retryLimit
	}
	overCLI := cfgpkg.Config{
		APIKey:     a.flags.apiKey,
		BaseURL:    a.flags.baseURL,
		Mapper:     a.flags.mapper,
		TimeoutMs:  a.flags.timeoutMs,
		RetryLimit: retryLimit,
		Logging:    cfgpkg.Logging{Level: a.flags.logLevel},
	}
	return cfgpkg.Merge(cfg, overCLI), nil
}

// resolver 首次调用时加载配置、重建日志器并装配 Resolver。
func (a *app) resolver() (*pipeline.Resolver, error) {
	if a.res != nil {
		return a.res, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, asConfigError(err)
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		return nil, asConfigError(err)
	}
	opts := diag.LogOptions{Level: cfg.Logging.Level, Dir: cfg.Logging.Dir}
	if opts.Dir == "" {
		opts.Writer = a.stderr
	}
	a.log = diag.NewLogger(a.corrID, opts)

	// debug: 输出运行时配置信息（已脱敏）
	a.log.Debug("config", "effective",
		zap.String("mapper", cfg.Mapper),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("api_key_set", cfg.APIKey != ""),
		zap.Int("retry_limit", cfg.RetryLimit),
		zap.Int("timeout_ms", cfg.TimeoutMs),
		zap.String("planner", cfg.Components.Planner),
	)

	res, err := assemble(cfg, a.log)
	if err != nil {
		return nil, asConfigError(fmt.Errorf("装配失败: %w", err))
	}
	a.res = res
	if a.flags.status {
		a.term = diag.NewTerminal(a.stderr, true)
		diag.SetTerminal(a.term)
	}
	return res, nil
}

// detector 按配置（components.detector）构造检测器；离线命令不装配 Resolver，不要求网络相关配置有效。
func (a *app) detector() (contract.Detector, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, asConfigError(err)
	}
	det, err := cfgpkg.BuildDetector(cfg)
	if err != nil {
		return nil, asConfigError(err)
	}
	return det, nil
}

// readInput 读取文件或 STDIN（缺省或 "-"）。
func (a *app) readInput(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "-" {
		b, err := io.ReadAll(a.stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}

// emit 按 --json 选择输出形态。
func (a *app) emit(v any, text string) error {
	if a.flags.json {
		return render.JSON(a.stdout, v)
	}
	_, err := fmt.Fprintln(a.stdout, text)
	return err
}

// afterNetwork 在网络命令后按需打印限流快照（仅本进程内观测）。
func (a *app) afterNetwork() {
	if !a.flags.showRateLimit || a.res == nil {
		return
	}
	info, ok := a.res.RateLimitSnapshot()
	fprintf(a.stderr, "\n%s\n", render.RateLimit(info, ok, time.Now()))
}
