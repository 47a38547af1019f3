package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound 表示来源正常返回，但结果列表为空。
	ErrNotFound = errors.New("not found")
	// ErrSourceUnavailable 表示第一阶段（搜索）因网络/鉴权/解码失败而不可用。
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDetailsUnavailable 表示第二阶段（详情）失败；调用方应降级而不是失败。
	ErrDetailsUnavailable = errors.New("details unavailable")
	// ErrNoResults 表示搜索页里没有预期的结果表格/行/链接。
	// “确实没搜到”和“页面结构变了”无法区分，统一归为这一类。
	ErrNoResults = errors.New("no results")
)

// ConfigError 表示缺少凭据等配置项。对单次请求是永久失败，但不会让进程退出。
// 必须在发出任何网络请求之前返回。
type ConfigError struct {
	Source string
	Key    string // 例如 "TMDB_API_KEY"
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "configuration error"
	}
	return fmt.Sprintf("%s not set", e.Key)
}

// IsConfigError 判断 err 链上是否有 *ConfigError。
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// HTTPStatusError 表示上游返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// Error 是某个来源在某个阶段的可追溯错误。
// Kind 是上面的哨兵错误之一（errors.Is 可用），Err 是底层原因。
type Error struct {
	Source string // "tmdb" / "goodreads" / "gsearch"
	Stage  string // "search" / "details" / "fetch"
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source=%s stage=%s: %v", e.Source, e.Stage, e.Kind)
	}
	return fmt.Sprintf("source=%s stage=%s: %v: %v", e.Source, e.Stage, e.Kind, e.Err)
}

// Unwrap 同时暴露分类与原因：errors.Is(err, ErrSourceUnavailable) 与 errors.As(err, &*HTTPStatusError) 都成立。
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap 构造 *Error；err 为 nil 时只保留分类。
func Wrap(source, stage string, kind, err error) error {
	return &Error{Source: source, Stage: stage, Kind: kind, Err: err}
}
