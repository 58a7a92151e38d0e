package diag

import (
	"context"
	"errors"
	"net"
	"os"

	"figimap/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeValidation Code = "validation"
	CodeRateLimit  Code = "rate_limit"
	CodeAPI        Code = "api"
	CodeNetwork    Code = "network"
	CodeCancel     Code = "cancel"
	CodeIO         Code = "io"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrValidation) {
		return CodeValidation
	}
	if errors.Is(err, contract.ErrRateLimited) {
		return CodeRateLimit
	}
	// 未收到 HTTP 响应的 APIError 归为网络类
	var ae *contract.APIError
	if errors.As(err, &ae) {
		if ae.Status == 0 && ae.Err != nil {
			return CodeNetwork
		}
		return CodeAPI
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}
