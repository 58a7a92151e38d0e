package contract

import (
	"errors"
	"fmt"
	"strconv"
)

// 错误分类哨兵（用于 errors.Is 判定）。
var (
	// ErrValidation: 本地输入缺失/非法（空批、超过 100 条、空 idValue、配置错误）。从不重试。
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited: 重试耗尽后仍为 429。
	ErrRateLimited = errors.New("rate limited")
	// ErrAPI: 其他非 2xx（重试后）或结构不合法的响应体。
	ErrAPI = errors.New("api failure")
)

// ValidationError: 本地校验失败。Index 为失败请求在批内的位置（-1 表示不适用）。
type ValidationError struct {
	Msg    string
	Index  int
	Detail string
}

// NewValidationError 构造不绑定索引的校验错误。
func NewValidationError(format string, a ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, a...), Index: -1}
}

func (e *ValidationError) Error() string {
	msg := e.Msg
	if e.Index >= 0 {
		msg = fmt.Sprintf("invalid mapping request at index %d: %s", e.Index, e.Msg)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RateLimitError: 429 且重试耗尽。RetryAfter 取自 retry-after 头（秒），HasRetryAfter 为 false 表示头缺失。
type RateLimitError struct {
	Status        int
	RetryAfter    int
	HasRetryAfter bool
}

func (e *RateLimitError) Error() string {
	if e.HasRetryAfter {
		return "rate limit exceeded, retry after " + strconv.Itoa(e.RetryAfter) + "s"
	}
	return "rate limit exceeded, wait before making more requests"
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitError) UpstreamStatus() int { return e.Status }

func (e *RateLimitError) UpstreamMessage() string { return "" }

// APIError: 通用远端失败。Status 为 0 表示未收到 HTTP 响应（网络错误重试耗尽）。
type APIError struct {
	Status int
	Msg    string
	Body   string
	Err    error // 底层原因（可选）
}

func (e *APIError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Status == 0:
		return e.Msg
	default:
		return fmt.Sprintf("%s (status %d)", e.Msg, e.Status)
	}
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) UpstreamStatus() int { return e.Status }

func (e *APIError) UpstreamMessage() string { return e.Body }

var (
	_ UpstreamError = (*APIError)(nil)
	_ UpstreamError = (*RateLimitError)(nil)
)
