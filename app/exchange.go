package app

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/stats"
	"github.com/favbox/windx/common/tracer/traceinfo"
	"github.com/favbox/windx/protocol/consts"
	"github.com/zoobzio/clockz"
	"golang.org/x/net/http/httpguts"
)

// Config 构造交换体所需的进程级配置，通常由传输层按服务器选项填充。
type Config struct {
	// Root 派生请求记录器的根记录器，nil 时使用不带导出器的根记录器。
	Root *tracer.RootLogger
	// Adapter 传输适配器，可为 nil（如单元测试）。
	Adapter Adapter
	// Debug 为真时请求记录器输出 Debug 日志。
	Debug bool
	// RequestIDHeaders 请求 ID 的来源请求头，按优先级排列。
	RequestIDHeaders []string
	// TraceHeader Fetch 时注入追踪 ID 的出站请求头，为空时不注入。
	TraceHeader string
	// ClientIP 客户端 IP 解析配置。
	ClientIP ClientIPOptions
	// HTTPClient Fetch 使用的客户端，nil 时使用 http.DefaultClient。
	HTTPClient *http.Client
	// Clock 生命周期统计使用的时钟。
	Clock clockz.Clock
	// StatsLevel 生命周期统计的记录级别。
	StatsLevel stats.Level
}

// Exchange 表示一次进行中的请求/响应交换。
//
// 交换体只会进入一个终态：完成（done）或中止（aborted），二者统称锁定。
// 锁定以后响应状态、头与正文的修改均被拒绝并记录为错误。
// 超时只会把交换体标记为中止，不会打断仍在运行的处理器。
type Exchange struct {
	method   string
	path     string
	rawQuery string
	host     string
	headers  map[string]string

	requestID     string
	requestIDFrom string

	adapter     Adapter
	traceHeader string
	ipOptions   ClientIPOptions
	httpClient  *http.Client

	logger    *tracer.Logger
	ctx       context.Context
	cancel    context.CancelCauseFunc
	traceInfo traceinfo.TraceInfo

	mu          sync.Mutex
	initialized bool
	route       RouteInfo
	body        any
	state       map[string]any
	status      int
	respHeaders map[string]string
	respBody    *string
	respStream  io.ReadCloser
	streamSize  int64
	done        bool
	aborted     bool
	lockedCh    chan struct{}
	timer       *time.Timer
	timerGen    uint64
	errs        errors.ErrorChain
	after       []AfterHook

	afterOnce sync.Once
	ipOnce    sync.Once
	clientIP  string
}

// NewExchange 创建交换体：解析请求 ID，并派生绑定该 ID 的记录器。
func NewExchange(ctx context.Context, req Request, cfg Config) *Exchange {
	if ctx == nil {
		ctx = context.Background()
	}
	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = v
	}
	header := func(name string) string { return headers[name] }

	idHeaders := cfg.RequestIDHeaders
	if idHeaders == nil {
		idHeaders = DefaultRequestIDHeaders()
	}
	requestID, from := resolveRequestID(idHeaders, header)

	root := cfg.Root
	if root == nil {
		root = tracer.NewRootLogger()
	}
	logger := root.Spawn(tracer.SpawnConfig{
		TraceID:    requestID,
		Debug:      cfg.Debug,
		Attributes: tracer.Attributes{tracer.AttrRequestID: requestID},
	})

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = consts.MethodGet
	}
	path := req.Path
	if path == "" {
		path = "/"
	}

	ex := &Exchange{
		method:        method,
		path:          path,
		rawQuery:      req.RawQuery,
		host:          req.Host,
		headers:       headers,
		requestID:     logger.TraceID(),
		requestIDFrom: from,
		adapter:       cfg.Adapter,
		traceHeader:   strings.ToLower(cfg.TraceHeader),
		ipOptions:     cfg.ClientIP,
		httpClient:    cfg.HTTPClient,
		logger:        logger,
		traceInfo:     traceinfo.NewTraceInfo(cfg.Clock, cfg.StatsLevel),
		state:         make(map[string]any),
		status:        consts.StatusOK,
		respHeaders:   make(map[string]string),
		lockedCh:      make(chan struct{}),
	}
	ex.ctx, ex.cancel = context.WithCancelCause(ctx)
	return ex
}

// Method 返回大写的请求方法。
func (ex *Exchange) Method() string { return ex.method }

// Path 返回请求路径。
func (ex *Exchange) Path() string { return ex.path }

// RawQuery 返回不含问号的原始查询字符串。
func (ex *Exchange) RawQuery() string { return ex.rawQuery }

// Host 返回请求的源站。
func (ex *Exchange) Host() string { return ex.host }

// Header 获取请求头，名称不区分大小写。
func (ex *Exchange) Header(name string) string {
	return ex.headers[strings.ToLower(name)]
}

// Headers 返回请求头的拷贝。
func (ex *Exchange) Headers() map[string]string {
	return maps.Clone(ex.headers)
}

// RequestID 返回请求 ID，与追踪 ID 相同。
func (ex *Exchange) RequestID() string { return ex.requestID }

// TraceID 返回记录器绑定的追踪 ID。
func (ex *Exchange) TraceID() string { return ex.logger.TraceID() }

// RequestIDSource 返回请求 ID 来自的请求头，生成的 ID 返回空串。
func (ex *Exchange) RequestIDSource() string { return ex.requestIDFrom }

// Logger 返回本次交换的记录器。
func (ex *Exchange) Logger() *tracer.Logger { return ex.logger }

// Context 返回交换体的上下文，中止时以 ErrAborted 或 ErrTimeout 为原因取消。
func (ex *Exchange) Context() context.Context { return ex.ctx }

// Adapter 返回传输适配器。
func (ex *Exchange) Adapter() Adapter { return ex.adapter }

// TraceInfo 返回生命周期统计。
func (ex *Exchange) TraceInfo() traceinfo.TraceInfo { return ex.traceInfo }

// Locked 返回在交换体锁定时关闭的通道。
func (ex *Exchange) Locked() <-chan struct{} { return ex.lockedCh }

// IsDone 是否已正常完成。
func (ex *Exchange) IsDone() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.done
}

// IsAborted 是否已中止。
func (ex *Exchange) IsAborted() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.aborted
}

// IsLocked 是否已完成或中止。
func (ex *Exchange) IsLocked() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.done || ex.aborted
}

// StatusCode 返回当前响应状态码。
func (ex *Exchange) StatusCode() int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.status
}

// ResponseHeader 获取已设置的响应头。
func (ex *Exchange) ResponseHeader(name string) string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.respHeaders[strings.ToLower(name)]
}

// ResponseHeaders 返回响应头的拷贝。
func (ex *Exchange) ResponseHeaders() map[string]string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return maps.Clone(ex.respHeaders)
}

// ResponseBody 返回响应正文，nil 表示没有正文。
func (ex *Exchange) ResponseBody() *string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.respBody == nil {
		return nil
	}
	s := *ex.respBody
	return &s
}

// ResponseStream 返回 File 打开的响应流及其大小，没有时返回 nil。
func (ex *Exchange) ResponseStream() (io.ReadCloser, int64) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.respStream, ex.streamSize
}

// Body 返回 Init 加载的请求正文。
func (ex *Exchange) Body() any {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.body
}

// Route 返回 Init 记录的路由信息。
func (ex *Exchange) Route() RouteInfo {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.route
}

// Errors 返回交换过程中记录的错误。
func (ex *Exchange) Errors() errors.ErrorChain {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return append(errors.ErrorChain(nil), ex.errs...)
}

// Get 获取状态值。
func (ex *Exchange) Get(key string) (value any, exists bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	value, exists = ex.state[key]
	return
}

// Set 设置状态值，供中间件向后续处理器传递数据。
func (ex *Exchange) Set(key string, value any) {
	ex.mu.Lock()
	ex.state[key] = value
	ex.mu.Unlock()
}

// State 返回状态的只读拷贝。
func (ex *Exchange) State() map[string]any {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return maps.Clone(ex.state)
}

// ClientIP 解析客户端 IP，结果在交换体内缓存。
func (ex *Exchange) ClientIP() string {
	ex.ipOnce.Do(func() {
		remote := ""
		if ex.adapter != nil {
			remote = ex.adapter.ClientIP()
		}
		ex.clientIP = resolveClientIP(ex.ipOptions, remote, func(name string) string {
			return ex.headers[name]
		})
	})
	return ex.clientIP
}

// Init 记录路由并加载请求正文，重复调用不生效。
//
// 仅 POST、PUT、PATCH 和 DELETE 会加载正文；loader 为 nil 时使用适配器加载。
// 正文超限置 413，其他加载失败记录日志并置 400，错误不会向上返回。
func (ex *Exchange) Init(ctx context.Context, route RouteInfo, loader BodyLoader) {
	ex.mu.Lock()
	if ex.initialized {
		ex.mu.Unlock()
		return
	}
	ex.initialized = true
	ex.route = route
	for k, v := range route.Params {
		ex.state[k] = v
	}
	ex.mu.Unlock()

	cfg := route.BodyParser
	if !consts.HasBody(ex.method) || (cfg != nil && cfg.Disabled) {
		return
	}
	if loader == nil && ex.adapter != nil {
		loader = ex.adapter.LoadBody
	}
	if loader == nil {
		return
	}
	if cfg == nil {
		cfg = &BodyParserConfig{}
	}

	st := ex.traceInfo.Stats()
	st.Record(stats.ReadBodyStart, stats.StatusInfo, "")
	body, err := ex.loadBody(ctx, loader, cfg)
	if err != nil {
		st.Record(stats.ReadBodyFinish, stats.StatusError, err.Error())
		if errors.Is(err, errors.ErrBodyTooLarge) {
			ex.appendError(errors.New(err, errors.ErrorTypeInit, nil))
			ex.logger.Warn("请求正文超过限制", err.Error())
			_ = ex.SetStatus(consts.StatusRequestEntityTooLarge)
			return
		}
		ex.report(errors.New(err, errors.ErrorTypeInit, nil))
		_ = ex.SetStatus(consts.StatusBadRequest)
		return
	}
	st.Record(stats.ReadBodyFinish, stats.StatusInfo, "")

	ex.mu.Lock()
	ex.body = body
	ex.mu.Unlock()
}

func (ex *Exchange) loadBody(ctx context.Context, loader BodyLoader, cfg *BodyParserConfig) (body any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("加载正文时发生恐慌: %v\n%s", r, debug.Stack())
		}
	}()
	return loader(ctx, cfg)
}

// SetTimeout 设置请求截止时间，到期时以 408 中止。
//
// 新的超时总是先清除旧的计时器；d <= 0 记录错误且不做任何修改。
func (ex *Exchange) SetTimeout(d time.Duration) {
	if d <= 0 {
		ex.report(errors.Wrap(errors.ErrInvalidTimeout, errors.ErrorTypeValidation, "%v", d))
		return
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.done || ex.aborted {
		return
	}
	ex.stopTimerLocked()
	gen := ex.timerGen
	ex.timer = time.AfterFunc(d, func() {
		ex.abortIf(func() bool { return ex.timerGen == gen }, consts.StatusRequestTimeout, errors.ErrTimeout)
	})
}

// ClearTimeout 清除请求截止时间。
func (ex *Exchange) ClearTimeout() {
	ex.mu.Lock()
	ex.stopTimerLocked()
	ex.mu.Unlock()
}

// HasTimeout 是否有未触发的计时器。
func (ex *Exchange) HasTimeout() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.timer != nil
}

// stopTimerLocked 停止计时器并使已触发但尚未执行的回调失效。
func (ex *Exchange) stopTimerLocked() {
	ex.timerGen++
	if ex.timer != nil {
		ex.timer.Stop()
		ex.timer = nil
	}
}

// SetStatus 设置响应状态码。
//
// 未收录的状态码或已锁定时返回错误；状态码变化时向记录器写入
// http.status_code 与 otel.status_code 属性。
func (ex *Exchange) SetStatus(code int) error {
	if !consts.IsKnownStatus(code) {
		err := errors.Wrap(errors.ErrInvalidStatus, errors.ErrorTypeValidation, "%d", code)
		ex.report(err)
		return err
	}

	ex.mu.Lock()
	if ex.done || ex.aborted {
		ex.mu.Unlock()
		err := errors.Wrap(errors.ErrLocked, errors.ErrorTypeValidation, "设置状态码 %d", code)
		ex.report(err)
		return err
	}
	changed := ex.status != code
	ex.status = code
	ex.mu.Unlock()

	if changed {
		ex.emitStatus(code)
	}
	return nil
}

func (ex *Exchange) emitStatus(code int) {
	ex.logger.SetAttributes(tracer.Attributes{
		tracer.AttrHTTPStatusCode: code,
		tracer.AttrOtelStatusCode: tracer.StatusCodeFor(code),
	})
}

// SetHeader 设置响应头，名称转为小写。
func (ex *Exchange) SetHeader(name, value string) {
	if err := validateHeader(name, value); err != nil {
		ex.report(err)
		return
	}
	ex.mu.Lock()
	if ex.done || ex.aborted {
		ex.mu.Unlock()
		ex.report(errors.Wrap(errors.ErrLocked, errors.ErrorTypeValidation, "设置响应头 %s", name))
		return
	}
	ex.respHeaders[strings.ToLower(name)] = value
	ex.mu.Unlock()
}

// SetHeaders 批量设置响应头，任一无效时整体不生效。
func (ex *Exchange) SetHeaders(headers map[string]string) {
	for k, v := range headers {
		if err := validateHeader(k, v); err != nil {
			ex.report(err)
			return
		}
	}
	ex.mu.Lock()
	if ex.done || ex.aborted {
		ex.mu.Unlock()
		ex.report(errors.Wrap(errors.ErrLocked, errors.ErrorTypeValidation, "设置响应头"))
		return
	}
	for k, v := range headers {
		ex.respHeaders[strings.ToLower(k)] = v
	}
	ex.mu.Unlock()
}

// DelHeader 删除响应头。
func (ex *Exchange) DelHeader(name string) {
	ex.mu.Lock()
	if ex.done || ex.aborted {
		ex.mu.Unlock()
		ex.report(errors.Wrap(errors.ErrLocked, errors.ErrorTypeValidation, "删除响应头 %s", name))
		return
	}
	delete(ex.respHeaders, strings.ToLower(name))
	ex.mu.Unlock()
}

func validateHeader(name, value string) *errors.Error {
	if !httpguts.ValidHeaderFieldName(name) {
		return errors.Wrap(errors.ErrInvalidHeader, errors.ErrorTypeValidation, "名称 %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return errors.Wrap(errors.ErrInvalidHeader, errors.ErrorTypeValidation, "%s 的值 %q", name, value)
	}
	return nil
}

// SetBody 设置响应正文，仅接受 string 与 nil，其他类型被忽略。
func (ex *Exchange) SetBody(value any) {
	var body *string
	switch v := value.(type) {
	case nil:
	case string:
		body = &v
	default:
		ex.logger.Debug("忽略非字符串的响应正文", fmt.Sprintf("%T", value))
		return
	}

	ex.mu.Lock()
	if ex.done || ex.aborted {
		ex.mu.Unlock()
		ex.report(errors.Wrap(errors.ErrLocked, errors.ErrorTypeValidation, "设置响应正文"))
		return
	}
	ex.respBody = body
	ex.mu.Unlock()
}

// Abort 以 503 中止交换。
func (ex *Exchange) Abort() {
	ex.abort(consts.DefaultAbortStatus, errors.ErrAborted)
}

// AbortWithStatus 以指定状态码中止交换，未收录的状态码记录错误并使用 503。
func (ex *Exchange) AbortWithStatus(code int) {
	if !consts.IsKnownStatus(code) {
		ex.report(errors.Wrap(errors.ErrInvalidStatus, errors.ErrorTypeValidation, "中止状态码 %d", code))
		code = consts.DefaultAbortStatus
	}
	ex.abort(code, errors.ErrAborted)
}

func (ex *Exchange) abort(code int, cause error) {
	ex.abortIf(nil, code, cause)
}

// abortIf 锁定检查是并发中止与完成之间的唯一串行点，先到者生效。
// cond 在持锁状态下求值，用于丢弃已被替换或清除的计时器回调。
func (ex *Exchange) abortIf(cond func() bool, code int, cause error) {
	ex.mu.Lock()
	if ex.done || ex.aborted || (cond != nil && !cond()) {
		ex.mu.Unlock()
		return
	}
	ex.aborted = true
	changed := ex.status != code
	ex.status = code
	ex.stopTimerLocked()
	close(ex.lockedCh)
	ex.mu.Unlock()

	if changed {
		ex.emitStatus(code)
	}
	ex.cancel(cause)
	if cause == errors.ErrTimeout {
		ex.logger.Warn("请求超时，交换已中止")
	}
}

// End 完成交换，已锁定时不做任何事。
func (ex *Exchange) End() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.endLocked()
}

func (ex *Exchange) endLocked() bool {
	if ex.done || ex.aborted {
		return false
	}
	ex.done = true
	ex.stopTimerLocked()
	close(ex.lockedCh)
	return true
}

// AddAfter 登记响应定稿后执行的回调，nil 被忽略。
func (ex *Exchange) AddAfter(fn AfterHook) {
	if fn == nil {
		return
	}
	ex.mu.Lock()
	ex.after = append(ex.after, fn)
	ex.mu.Unlock()
}

// RunAfter 仅执行一次全部回调：尚未锁定时先完成交换；
// 适配器存在时回调被推迟到响应写出之后。
func (ex *Exchange) RunAfter() {
	ex.afterOnce.Do(func() {
		ex.End()
		ex.mu.Lock()
		hooks := append([]AfterHook(nil), ex.after...)
		ex.mu.Unlock()

		run := func() {
			ctx := context.WithoutCancel(ex.ctx)
			for _, hook := range hooks {
				ex.runHook(ctx, hook)
			}
			ex.cancel(context.Canceled)
		}
		if ex.adapter != nil {
			ex.adapter.Defer(run)
			return
		}
		run()
	})
}

func (ex *Exchange) runHook(ctx context.Context, hook AfterHook) {
	defer func() {
		if r := recover(); r != nil {
			hlog.SystemLogger().CtxErrorf(ctx, "后置回调发生恐慌: 追踪ID=%s 错误=%v\n%s", ex.TraceID(), r, debug.Stack())
		}
	}()
	if err := hook(ctx); err != nil {
		hlog.SystemLogger().CtxErrorf(ctx, "后置回调执行失败: 追踪ID=%s 错误=%v", ex.TraceID(), err)
	}
}

// Error 附加一个错误到交换体的错误列表，非 *errors.Error 的错误按私有错误记录。
//
// Error 会在 err 为空时触发恐慌。
func (ex *Exchange) Error(err error) *errors.Error {
	if err == nil {
		panic("错误不能为空")
	}
	var parsedError *errors.Error
	if !errors.As(err, &parsedError) {
		parsedError = errors.New(err, errors.ErrorTypePrivate, nil)
	}
	ex.appendError(parsedError)
	return parsedError
}

func (ex *Exchange) appendError(err *errors.Error) {
	ex.mu.Lock()
	ex.errs = append(ex.errs, err)
	ex.mu.Unlock()
}

// report 记录错误到错误链并写入请求记录器。
func (ex *Exchange) report(err *errors.Error) {
	ex.appendError(err)
	ex.logger.Error(err.Err)
}
