package consts

import "time"

const (
	// DefaultRouteTimeout 路由未声明超时时使用的请求截止时长。
	DefaultRouteTimeout = 30 * time.Second

	// DefaultMaxRequestBodySize 请求正文的默认字节上限，超出即视为 413。
	DefaultMaxRequestBodySize = 4 * 1024 * 1024

	// DefaultExitWaitTimeout 优雅关闭时等待在途请求的默认时长。
	DefaultExitWaitTimeout = 5 * time.Second

	// DefaultAbortStatus 未指定状态码时 Abort 使用的状态码。
	DefaultAbortStatus = StatusServiceUnavailable

	// DefaultRedirectStatus 未指定状态码时 Redirect 使用的状态码。
	DefaultRedirectStatus = StatusSeeOther
)
