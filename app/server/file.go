package server

import (
	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/tracer"
)

// FileOptions 将配置文件转换为配置函数，导出器需另行指定。
func FileOptions(f *config.File) ([]config.Option, error) {
	opts := []config.Option{
		WithHostPorts(f.Server.Addr),
		WithNetwork(f.Server.Network),
		WithBasePath(f.Server.BasePath),
		WithReadTimeout(f.Server.ReadTimeout),
		WithWriteTimeout(f.Server.WriteTimeout),
		WithIdleTimeout(f.Server.IdleTimeout),
		WithExitWaitTime(f.Server.ExitWaitTimeout),
		WithMaxRequestBodySize(f.Server.MaxRequestBodySize),
		WithCompress(f.Server.Compress),
		WithDefaultTimeout(f.Request.DefaultTimeout),
		WithTraceHeader(f.Request.TraceHeader),
		WithService(f.Service.Name, f.Service.Version),
		WithDebug(f.Log.Debug),
		WithDisablePrintRoute(f.Log.DisablePrintRoute),
	}
	if f.Server.AccessLog {
		opts = append(opts, WithAccessLog(nil))
	}
	if len(f.Server.CORSOrigins) > 0 {
		opts = append(opts, WithCORS(f.Server.CORSOrigins...))
	}
	if len(f.Request.IDHeaders) > 0 {
		opts = append(opts, WithRequestIDHeaders(f.Request.IDHeaders...))
	}
	if len(f.Request.IPHeaders) > 0 || f.Request.IPHeaderPromotion {
		headers := f.Request.IPHeaders
		if len(headers) == 0 {
			headers = app.DefaultIPHeaders()
		}
		opts = append(opts, WithIPHeaders(f.Request.IPHeaderPromotion, headers...))
	}
	if len(f.Request.TrustedProxies) > 0 {
		cidrs, err := app.ParseTrustedCIDRs(f.Request.TrustedProxies)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTrustedCIDRs(cidrs...))
	}
	if len(f.Service.Attributes) > 0 {
		opts = append(opts, WithGlobalAttributes(tracer.Attributes(f.Service.Attributes)))
	}
	return opts, nil
}
