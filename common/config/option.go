package config

import (
	"io"
	"net"
	"net/http"
	"time"

	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/stats"
	"github.com/favbox/windx/network"
	"github.com/favbox/windx/protocol/consts"
)

const (
	defaultReadTimeout = 3 * time.Minute
	defaultNetwork     = "tcp"
	defaultAddr        = ":8888"
	defaultBasePath    = "/"
	defaultServiceName = "windx"
	defaultTraceHeader = consts.HeaderXTraceID
)

// Option 是用于配置 Options 唯一结构体。
type Option struct {
	F func(o *Options)
}

// Options 是配置项的结构体。
type Options struct {
	// ReadTimeout 是网络库读取的超时时间，默认 3 分钟，0 代表永不超时。
	ReadTimeout time.Duration

	// WriteTimeout 是网络库写入的超时时间，默认为 0，即永不超时。
	WriteTimeout time.Duration

	// IdleTimeout 是长连接的闲置超时，超时则关闭。默认为 ReadTimeout 即 3 分钟。
	IdleTimeout time.Duration

	Network           string        // 网络协议，可选 "tcp", "unix"，默认 "tcp"
	Addr              string        // 监听地址，默认 ":8888"
	BasePath          string        // 基本路径，默认 "/"
	ExitWaitTimeout   time.Duration // 优雅退出的等待时间，默认 5s
	DisablePrintRoute bool          // 是否禁止打印路由，默认否
	Debug             bool          // 请求记录器是否输出 Debug 日志，默认否

	// DefaultTimeout 路由未声明超时时的请求截止时长，默认 30s，<= 0 表示不设置。
	DefaultTimeout time.Duration

	// MaxRequestBodySize 正文的最大请求字节数，默认 4MB。
	MaxRequestBodySize int64

	// RequestIDHeaders 请求 ID 的来源请求头，按优先级排列。
	RequestIDHeaders []string

	// TraceHeader Fetch 出站请求注入追踪 ID 的请求头，默认 "x-trace-id"。
	TraceHeader string

	// IPHeaders 解析客户端 IP 的请求头，按优先级排列。
	IPHeaders []string
	// IPHeaderPromotion 开启后，解析成功的请求头会被提升到队首。
	IPHeaderPromotion bool
	// TrustedCIDRs 可信代理网段，nil 表示信任全部地址。
	TrustedCIDRs []*net.IPNet

	ServiceName      string            // 服务名称，作为全局属性 service.name
	ServiceVersion   string            // 服务版本，作为全局属性 service.version
	GlobalAttributes tracer.Attributes // 其他全局属性

	// ExporterInit 惰性构造日志与跨度导出器，nil 时不导出。
	ExporterInit tracer.ExporterInit

	// HTTPClient Fetch 使用的客户端。
	HTTPClient *http.Client

	// Router 自定义路由器，需实现 route.Router，nil 时使用内置的 route.Mux。
	Router any

	Tracers    []any       // 生命周期跟踪器（app.Tracer），默认零长度切片
	TraceLevel stats.Level // 生命周期统计级别，默认 stats.LevelDetailed

	Compress  bool // 是否对响应进行 gzip 压缩，默认否
	AccessLog bool // 是否输出访问日志，默认否

	// AccessLogOutput 访问日志的输出位置，nil 时为标准输出。
	AccessLogOutput io.Writer

	// CORSOrigins 允许跨域访问的源站，为空时不处理跨域请求。
	CORSOrigins []string

	// TransporterNewer 自定义传输器的构造函数，nil 时使用 network/standard。
	TransporterNewer func(opts *Options) network.Transporter
}

// Apply 将指定的一组配置方法 opts 应用到配置项上。
func (o *Options) Apply(opts []Option) {
	for _, opt := range opts {
		opt.F(o)
	}
}

// GlobalAttrs 返回包含服务名称与版本的全局属性。
func (o *Options) GlobalAttrs() tracer.Attributes {
	attrs := tracer.Attributes{tracer.AttrServiceName: o.ServiceName}
	if o.ServiceVersion != "" {
		attrs[tracer.AttrServiceVersion] = o.ServiceVersion
	}
	return attrs.Merge(o.GlobalAttributes)
}

// NewOptions 创建基于给定配置函数的配置项。
func NewOptions(opts []Option) *Options {
	options := &Options{
		ReadTimeout:        defaultReadTimeout,
		IdleTimeout:        defaultReadTimeout,
		Network:            defaultNetwork,
		Addr:               defaultAddr,
		BasePath:           defaultBasePath,
		ExitWaitTimeout:    consts.DefaultExitWaitTimeout,
		DefaultTimeout:     consts.DefaultRouteTimeout,
		MaxRequestBodySize: consts.DefaultMaxRequestBodySize,
		TraceHeader:        defaultTraceHeader,
		ServiceName:        defaultServiceName,
		Tracers:            []any{},
		TraceLevel:         stats.LevelDetailed,
	}
	options.Apply(opts)
	return options
}
