package network

import (
	"context"
	"net"
	"net/http"
)

// Transporter 表示网络传输层接口。
type Transporter interface {
	// ListenAndServe 监听并使用 handler 处理请求，直至被关闭。
	ListenAndServe(handler http.Handler) error

	// Addr 返回实际监听的地址，尚未监听时返回 nil。
	Addr() net.Addr

	// Close 立即关闭传输器。
	Close() error

	// Shutdown 平滑关闭传输器，等待在途请求完成。
	Shutdown(ctx context.Context) error
}
