package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind 错误类别
// 编排层只根据类别分流（是否重试/是否立即终止），不再匹配错误文本；
// 文本到类别的转换只发生在 provider 适配层（ClassifyProviderError）
type ErrorKind int

const (
	KindTransient     ErrorKind = iota // 瞬态错误：超时、空响应、网络抖动，可重试
	KindConfiguration                  // 配置错误：凭证无效、权限受限、referrer 限制，不可重试
	KindQuota                          // 配额耗尽，不可重试
	KindOutputTooLong                  // 模型输出超长且解析失败，单独上报
)

// String 返回类别的字符串表示
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindQuota:
		return "quota"
	case KindOutputTooLong:
		return "output_too_long"
	default:
		return "transient"
	}
}

// Error 流水线错误
// Op 标识出错的操作，Msg 是面向用户的可诊断描述
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransientError 创建瞬态错误
func NewTransientError(op, msg string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Msg: msg, Err: err}
}

// NewConfigurationError 创建配置错误
func NewConfigurationError(op, msg string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Msg: msg, Err: err}
}

// NewQuotaError 创建配额错误
func NewQuotaError(op string, err error) *Error {
	return &Error{Kind: KindQuota, Op: op, Msg: "provider quota exhausted, check plan and billing", Err: err}
}

// NewOutputTooLongError 创建输出超长错误
func NewOutputTooLongError(op string, size int) *Error {
	return &Error{Kind: KindOutputTooLong, Op: op,
		Msg: fmt.Sprintf("model output too long to parse (%d bytes), reduce batch size or duration tier", size)}
}

// KindOf 提取错误类别；非流水线错误一律视为瞬态
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// IsFatal 判断错误是否必须立即终止（不重试）
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindQuota:
		return true
	default:
		return false
	}
}

// 厂商错误文本中标识致命错误的片段
// 仅在 provider 边界使用一次，编排层看到的已是带类别的错误
var (
	quotaMarkers  = []string{"quota", "rate limit exceeded", "resource exhausted", "billing"}
	configMarkers = []string{
		"permission", "unauthorized", "forbidden", "api key", "invalid key",
		"credential", "referer", "referrer", "access denied", "401", "403",
	}
)

// ClassifyProviderError 在 provider 边界把厂商错误转换为带类别的流水线错误
// 原始错误信息原样保留（对配置类错误，给用户看到厂商的原话才能定位问题）
func ClassifyProviderError(op string, err error) error {
	if err == nil {
		return nil
	}

	// 超时是瞬态错误
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransientError(op, "call timed out", err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return NewQuotaError(op, err)
		}
	}
	for _, marker := range configMarkers {
		if strings.Contains(msg, marker) {
			return NewConfigurationError(op, "provider rejected the request, check credentials and access configuration", err)
		}
	}

	return NewTransientError(op, "", err)
}
