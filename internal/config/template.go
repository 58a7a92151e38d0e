package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// 模板文件名。
const (
	TemplateConfigName = "figimap.yaml"
	TemplateEnvName    = ".env"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 匿名访问 OpenFIGI，默认重试与退避，组件采用仓库内置实现。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Options.Planner = map[string]any{
		"ticker_variants": []string{"Common Stock", "Preference"},
		"skip_unknown":    false,
	}
	return cfg
}

// TemplateYAML 将模板配置编码为 YAML。
func TemplateYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# figimap 配置模板（由 --init-config 生成）\n")
	buf.WriteString("# 优先级：CLI > ENV(.env) > YAML > 默认值\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultTemplateConfig()); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EnvTemplate 返回 .env 模板内容：列出全部受支持的覆盖键，空值表示未设置。
func EnvTemplate() string {
	keys := []string{
		"API_KEY", "BASE_URL", "TIMEOUT_MS", "RETRY_LIMIT", "RETRY_DELAY_MS", "MAX_RETRY_DELAY_MS",
		"USER_AGENT", "REQUESTS_PER_MINUTE", "MAPPER", "LOG_LEVEL", "LOG_DIR",
		"COMPONENTS_DETECTOR", "COMPONENTS_PLANNER", "COMPONENTS_MERGER",
		"OPTIONS__PLANNER__JSON", "OPTIONS__MAPPER__JSON",
	}
	var b strings.Builder
	b.WriteString("# figimap .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 空值表示未设置；已存在的进程环境变量优先。\n\n")
	b.WriteString("# OpenFIGI 凭据（有凭据时每批上限 100，否则 10）\n")
	b.WriteString(EnvAPIKey + "=\n\n")
	b.WriteString("# 运行参数覆盖\n")
	for _, k := range keys {
		b.WriteString(EnvPrefix + k + "=\n")
	}
	return b.String()
}

// WriteTemplates 在 dir 下生成配置与 .env 模板；已存在的文件跳过，不覆盖。
// 返回实际写入的路径。
func WriteTemplates(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	y, err := TemplateYAML()
	if err != nil {
		return nil, err
	}
	var written []string
	for _, f := range []struct {
		name string
		body []byte
	}{
		{TemplateConfigName, y},
		{TemplateEnvName, []byte(EnvTemplate())},
	} {
		p := filepath.Join(dir, f.name)
		ok, err := writeExclusive(p, f.body)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, p)
		}
	}
	return written, nil
}

// writeExclusive 仅在文件不存在时写入。
func writeExclusive(path string, b []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}
