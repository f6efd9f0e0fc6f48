package server

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/stats"
	"github.com/favbox/windx/network"
	"github.com/favbox/windx/route"
)

// WithHostPorts 指定监听的地址和端口。默认值：":8888"。
func WithHostPorts(addr string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Addr = addr
	}}
}

// WithNetwork 设置网络协议，可选：tcp，udp，unix（unix 域套接字）。默认值：tcp。
func WithNetwork(nw string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Network = nw
	}}
}

// WithBasePath 设置基本路径。默认值：`/`。
func WithBasePath(basePath string) config.Option {
	return config.Option{F: func(o *config.Options) {
		// 必须以 "/" 作为前缀和后缀，否则就拼接上 "/"
		if !strings.HasPrefix(basePath, "/") {
			basePath = "/" + basePath
		}
		if !strings.HasSuffix(basePath, "/") {
			basePath = basePath + "/"
		}
		o.BasePath = basePath
	}}
}

// WithReadTimeout 设置网络库读取数据超时时间。默认值 3 分钟。
func WithReadTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadTimeout = t
	}}
}

// WithWriteTimeout 设置网络库写入数据超时时间。默认值：无限长。
func WithWriteTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.WriteTimeout = t
	}}
}

// WithIdleTimeout 设置长连接闲置的超时时间。默认值 3 分钟。
//
// 当闲置时间超时时连接将关闭，以免受行为不端的客户端的攻击。
func WithIdleTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.IdleTimeout = t
	}}
}

// WithExitWaitTime 设置优雅退出的等待时间。默认值 5 秒。
func WithExitWaitTime(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ExitWaitTimeout = t
	}}
}

// WithDefaultTimeout 设置路由未声明超时时的请求截止时长，<= 0 表示不设置。默认值 30 秒。
func WithDefaultTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.DefaultTimeout = t
	}}
}

// WithMaxRequestBodySize 限制请求正文的最大字节数，超出即响应 413。默认值 4MB。
func WithMaxRequestBodySize(bs int64) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxRequestBodySize = bs
	}}
}

// WithDisablePrintRoute 设置是否禁止调试模式下的路由打印。默认值：否。
func WithDisablePrintRoute(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.DisablePrintRoute = b
	}}
}

// WithDebug 设置请求记录器是否输出 Debug 日志。
func WithDebug(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Debug = b
	}}
}

// WithRequestIDHeaders 设置请求 ID 的来源请求头，按优先级排列。
//
// 默认值：traceparent、x-request-id、x-trace-id。
func WithRequestIDHeaders(headers ...string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.RequestIDHeaders = headers
	}}
}

// WithTraceHeader 设置 Fetch 出站请求注入追踪 ID 的请求头，空串表示不注入。
func WithTraceHeader(header string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TraceHeader = header
	}}
}

// WithIPHeaders 设置解析客户端 IP 的请求头优先级，promote 为真时成功解析的请求头会被提升到队首。
func WithIPHeaders(promote bool, headers ...string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.IPHeaders = headers
		o.IPHeaderPromotion = promote
	}}
}

// WithTrustedProxies 设置可信代理的地址或网段，格式错误时触发恐慌。
func WithTrustedProxies(proxies ...string) config.Option {
	cidrs, err := app.ParseTrustedCIDRs(proxies)
	if err != nil {
		panic(err)
	}
	return config.Option{F: func(o *config.Options) {
		o.TrustedCIDRs = cidrs
	}}
}

// WithTrustedCIDRs 设置已解析的可信代理网段。
func WithTrustedCIDRs(cidrs ...*net.IPNet) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TrustedCIDRs = cidrs
	}}
}

// WithService 设置服务名称与版本，作为全部日志与跨度的全局属性。
func WithService(name, version string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ServiceName = name
		o.ServiceVersion = version
	}}
}

// WithGlobalAttributes 追加全局属性。
func WithGlobalAttributes(attrs tracer.Attributes) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.GlobalAttributes = o.GlobalAttributes.Merge(attrs)
	}}
}

// WithExporters 设置惰性构造导出器的函数，首次派生记录器时调用一次。
func WithExporters(init tracer.ExporterInit) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ExporterInit = init
	}}
}

// WithHTTPClient 设置 Fetch 使用的客户端。
func WithHTTPClient(c *http.Client) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.HTTPClient = c
	}}
}

// WithRouter 设置自定义路由器。
func WithRouter(r route.Router) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Router = r
	}}
}

// WithTracer 添加一个生命周期跟踪器。
func WithTracer(t app.Tracer) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Tracers = append(o.Tracers, t)
	}}
}

// WithTraceLevel 设置生命周期统计级别。
func WithTraceLevel(level stats.Level) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TraceLevel = level
	}}
}

// WithCompress 开启响应的 gzip 压缩。
func WithCompress(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Compress = b
	}}
}

// WithAccessLog 开启 Apache combined 格式的访问日志，w 为 nil 时输出到标准输出。
func WithAccessLog(w io.Writer) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.AccessLog = true
		o.AccessLogOutput = w
	}}
}

// WithCORS 允许给定源站跨域访问，"*" 表示任意源站。
func WithCORS(origins ...string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.CORSOrigins = origins
	}}
}

// WithTransport 设置自定义传输器。
func WithTransport(transporter func(opts *config.Options) network.Transporter) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.TransporterNewer = transporter
	}}
}
