package standard

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/protocol/consts"
	"github.com/gorilla/handlers"
)

// Engine 处理交换体的分发引擎，由 route.Engine 实现。
type Engine interface {
	NewExchange(ctx context.Context, req app.Request, adapter app.Adapter) *app.Exchange
	OnIncoming(ex *app.Exchange)
}

// Handler 将 net/http 请求转换为交换体并交给分发引擎处理。
type Handler struct {
	engine   Engine
	maxBytes int64
}

// NewHandler 创建原始的 http.Handler，不带任何外层中间件。
func NewHandler(engine Engine, maxBytes int64) *Handler {
	return &Handler{engine: engine, maxBytes: maxBytes}
}

// ServeHTTP 实现 http.Handler。
//
// 处理器仍在运行时交换体被中止（超时或 Abort），会立即写出中止响应，
// 不再等待处理器返回。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a := newAdapter(r, h.maxBytes)
	ex := h.engine.NewExchange(r.Context(), requestOf(r), a)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		h.engine.OnIncoming(ex)
	}()

	select {
	case <-finished:
	case <-ex.Locked():
		if !ex.IsAborted() {
			<-finished
		}
	}

	if err := writeResponse(w, ex); err != nil {
		ex.Logger().Warn("写出响应失败", err.Error())
	}
	_ = http.NewResponseController(w).Flush()
	a.markWritten()
}

// requestOf 提取交换体需要的请求要素，多值请求头以 ", " 合并。
func requestOf(r *http.Request) app.Request {
	headers := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	if r.Host != "" {
		headers[consts.HeaderHost] = r.Host
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := ""
	if r.Host != "" {
		host = scheme + "://" + r.Host
	}
	return app.Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Host:     host,
		Headers:  headers,
	}
}

// writeResponse 写出交换体的状态码、响应头与正文或文件流。
func writeResponse(w http.ResponseWriter, ex *app.Exchange) error {
	header := w.Header()
	for k, v := range ex.ResponseHeaders() {
		header.Set(k, v)
	}
	status := ex.StatusCode()

	if stream, size := ex.ResponseStream(); stream != nil {
		defer stream.Close()
		if size >= 0 && header.Get(consts.HeaderContentLength) == "" {
			header.Set(consts.HeaderContentLength, strconv.FormatInt(size, 10))
		}
		w.WriteHeader(status)
		_, err := io.Copy(w, stream)
		return err
	}

	body := ex.ResponseBody()
	if body != nil && header.Get(consts.HeaderContentLength) == "" {
		header.Set(consts.HeaderContentLength, strconv.Itoa(len(*body)))
	}
	w.WriteHeader(status)
	if body == nil {
		return nil
	}
	_, err := io.WriteString(w, *body)
	return err
}

// Wrap 按配置为 h 套上 gorilla/handlers 中间件：恐慌恢复、CORS、gzip 压缩与访问日志。
func Wrap(h http.Handler, opts *config.Options) http.Handler {
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(opts.Debug),
	)(h)
	if len(opts.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(opts.CORSOrigins),
			handlers.AllowedMethods(corsMethods),
			handlers.AllowedHeaders(corsHeaders),
			handlers.ExposedHeaders(corsExposedHeaders),
		)(h)
	}
	if opts.Compress {
		h = handlers.CompressHandler(h)
	}
	if opts.AccessLog {
		out := opts.AccessLogOutput
		if out == nil {
			out = os.Stdout
		}
		h = handlers.CombinedLoggingHandler(out, h)
	}
	return h
}

var (
	corsMethods = []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	corsHeaders = []string{
		"Authorization",
		"Cache-Control",
		"Content-Type",
		"Traceparent",
		"X-Request-ID",
		"X-Trace-ID",
		"X-Requested-With",
	}
	corsExposedHeaders = []string{
		"Content-Length",
		"Content-Disposition",
	}
)

// recoveryLogger 将 gorilla/handlers 捕获的恐慌写入系统日志。
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	hlog.SystemLogger().Error(v...)
}
