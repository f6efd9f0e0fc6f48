package app

import (
	"context"
	"io"
)

// Request 传输适配器提取的请求要素，构造交换体后不再变化。
type Request struct {
	Method   string
	Path     string
	RawQuery string
	// Host 请求的源站，可带协议，如 "https://example.com"。
	Host string
	// Headers 请求头，名称会被统一转为小写。
	Headers map[string]string
}

// BodyParserConfig 路由声明的正文解析配置。
type BodyParserConfig struct {
	// Limit 正文字节上限，<= 0 时使用传输层默认值。
	Limit int64
	// AllowedTypes 允许的内容类型，为空时不限制。
	AllowedTypes []string
	// Disabled 为真时不加载正文。
	Disabled bool
}

// BodyLoader 加载并解析请求正文。
//
// 超出上限时返回 errors.ErrBodyTooLarge（映射为 413）；返回 (nil, nil) 表示没有正文。
type BodyLoader func(ctx context.Context, cfg *BodyParserConfig) (any, error)

// Adapter 由传输层实现，交换体通过它访问底层连接。
type Adapter interface {
	// LoadBody 加载请求正文。
	LoadBody(ctx context.Context, cfg *BodyParserConfig) (any, error)
	// Stream 打开用于响应的文件流，返回流与字节数。
	Stream(path string) (io.ReadCloser, int64, error)
	// ClientIP 返回对端地址（不含端口）。
	ClientIP() string
	// Defer 在响应写出之后执行 fn。
	Defer(fn func())
}

// RouteInfo 交换体初始化时记录的路由信息。
type RouteInfo struct {
	Name       string
	Path       string
	Kind       string
	Params     map[string]string
	BodyParser *BodyParserConfig
}

// AfterHook 响应定稿后执行的回调。
type AfterHook func(ctx context.Context) error

// Tracer 在每个请求开始与结束时被调用的生命周期钩子。
type Tracer interface {
	Start(ctx context.Context, ex *Exchange) context.Context
	Finish(ctx context.Context, ex *Exchange)
}
