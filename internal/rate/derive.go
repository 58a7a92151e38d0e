package rate

import (
	"crypto/sha256"
	"fmt"
	"net/url"
)

// DeriveKey 以端点主机与凭据摘要构造节流分组键；凭据不入日志/键名明文。
// 未配置凭据时使用 "anonymous"，与匿名档位共享配额。
func DeriveKey(baseURL, apiKey string) LimitKey {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if apiKey == "" {
		return LimitKey(host + ":anonymous")
	}
	sum := sha256.Sum256([]byte(apiKey))
	return LimitKey(fmt.Sprintf("%s:%x", host, sum[:8]))
}
