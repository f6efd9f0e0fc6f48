package route

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/stats"
	internalStats "github.com/favbox/windx/internal/stats"
	"github.com/favbox/windx/protocol/consts"
)

// Engine 分发引擎：为每个交换体执行路由匹配、处理链、分诊与收尾。
//
// 使用内置路由器时 Engine 内嵌其根路由组，可直接注册路由。
type Engine struct {
	*RouterGroup

	options   *config.Options
	router    Router
	root      *tracer.RootLogger
	ipHeaders *app.IPHeaderPriority
	tracerCtl *internalStats.Controller

	middleware   app.HandlersChain
	panicHandler app.PanicHandler
}

// NewEngine 创建给定选项的分发引擎。
func NewEngine(opts *config.Options) *Engine {
	engine := &Engine{
		options:   opts,
		tracerCtl: &internalStats.Controller{},
		ipHeaders: newIPHeaders(opts),
	}

	switch r := opts.Router.(type) {
	case nil:
		m := NewMux(opts.BasePath)
		engine.router = m
		engine.RouterGroup = &m.RouterGroup
	case *Mux:
		engine.router = r
		engine.RouterGroup = &r.RouterGroup
	case Router:
		engine.router = r
	default:
		panic(fmt.Sprintf("路由器 %T 未实现 route.Router", opts.Router))
	}
	if m, ok := engine.router.(*Mux); ok && !opts.DisablePrintRoute {
		m.OnRegister(debugPrintRoute)
	}

	rootOpts := []tracer.Option{
		tracer.WithGlobalAttributes(opts.GlobalAttrs()),
		tracer.WithDebug(opts.Debug),
	}
	if opts.ExporterInit != nil {
		rootOpts = append(rootOpts, tracer.WithExporterInit(opts.ExporterInit))
	}
	engine.root = tracer.NewRootLogger(rootOpts...)

	for _, t := range opts.Tracers {
		if col, ok := t.(app.Tracer); ok {
			engine.tracerCtl.Append(col)
		}
	}
	return engine
}

func newIPHeaders(opts *config.Options) *app.IPHeaderPriority {
	headers := opts.IPHeaders
	if headers == nil {
		headers = app.DefaultIPHeaders()
	}
	return app.NewIPHeaderPriority(headers, opts.IPHeaderPromotion)
}

// Use 添加全局中间件，先于路由中间件执行。
func (engine *Engine) Use(middleware ...app.HandlerFunc) *Engine {
	engine.middleware = append(engine.middleware, handlersOf(middleware)...)
	return engine
}

// UseHandler 添加全局中间件记录。
func (engine *Engine) UseHandler(middleware ...app.Handler) *Engine {
	engine.middleware = append(engine.middleware, middleware...)
	return engine
}

// OnPanic 设置处理链恐慌时的回调，回调中止交换后不再分诊。
func (engine *Engine) OnPanic(h app.PanicHandler) *Engine {
	engine.panicHandler = h
	return engine
}

// GetOptions 返回引擎的配置项。
func (engine *Engine) GetOptions() *config.Options {
	return engine.options
}

// Router 返回引擎使用的路由器。
func (engine *Engine) Router() Router {
	return engine.router
}

// RootLogger 返回根记录器。
func (engine *Engine) RootLogger() *tracer.RootLogger {
	return engine.root
}

// Routes 返回已注册的路由，路由器不支持列出时返回 nil。
func (engine *Engine) Routes() Routes {
	if l, ok := engine.router.(RouteLister); ok {
		return l.Routes()
	}
	return nil
}

// Flush 刷新全部导出器，通常在进程退出前调用。
func (engine *Engine) Flush(ctx context.Context) error {
	return engine.root.Flush(ctx)
}

// NewExchange 按引擎配置为一次请求创建交换体。
func (engine *Engine) NewExchange(ctx context.Context, req app.Request, adapter app.Adapter) *app.Exchange {
	opts := engine.options
	return app.NewExchange(ctx, req, app.Config{
		Root:             engine.root,
		Adapter:          adapter,
		Debug:            opts.Debug,
		RequestIDHeaders: opts.RequestIDHeaders,
		TraceHeader:      opts.TraceHeader,
		ClientIP: app.ClientIPOptions{
			Headers:      engine.ipHeaders,
			TrustedCIDRs: opts.TrustedCIDRs,
		},
		HTTPClient: opts.HTTPClient,
		StatsLevel: opts.TraceLevel,
	})
}

// OnIncoming 处理一次请求，每个交换体只调用一次。
//
// 无论处理链成功、分诊还是发生恐慌，最后都会登记刷新记录器的后置回调并执行全部后置回调。
// 交换体超时只会被标记为中止，不会打断仍在运行的处理器。
func (engine *Engine) OnIncoming(ex *app.Exchange) {
	ctx := engine.tracerCtl.DoStart(ex.Context(), ex)

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
			hlog.SystemLogger().CtxErrorf(ctx, hlog.EngineErrorFormat, err, ex.Path())
			if !ex.IsLocked() {
				_ = ex.SetStatus(consts.StatusInternalServerError)
				ex.End()
			}
		}
		ex.AddAfter(func(context.Context) error {
			engine.tracerCtl.DoFinish(ctx, ex, err)
			if ex.Logger().IsDebug() {
				ex.Logger().Debug("请求阶段耗时(微秒)", internalStats.Summary(ex.TraceInfo()))
				if failed := internalStats.Failures(ex.TraceInfo()); len(failed) > 0 {
					ex.Logger().Debug("失败的阶段", failed)
				}
			}
			return nil
		})
		ex.AddAfter(func(ctx context.Context) error {
			return ex.Logger().Flush(ctx)
		})
		ex.RunAfter()
	}()

	err = engine.dispatch(ctx, ex)
}

func (engine *Engine) dispatch(ctx context.Context, ex *app.Exchange) (err error) {
	engine.describeRequest(ex)

	var (
		r      *Route
		params map[string]string
	)
	if m, ok := engine.router.Match(ex.Method(), ex.Path()); ok {
		r, params = m.Route, m.Params
	} else if nf, ok := engine.router.MatchNotFound(ex.Path()); ok {
		r = nf
		_ = ex.SetStatus(consts.StatusNotFound)
	} else {
		ex.Status(consts.StatusNotFound)
		return nil
	}
	engine.describeRoute(ex, r)

	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
			engine.onPanic(ctx, ex, rec)
		}
		if err != nil {
			engine.handleChainError(ctx, ex, r, err)
		}
	}()
	return engine.run(ctx, ex, r, params)
}

// run 依次执行超时设置、初始化、中间件与主处理器。
func (engine *Engine) run(ctx context.Context, ex *app.Exchange, r *Route, params map[string]string) error {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = engine.options.DefaultTimeout
	}
	if timeout > 0 {
		ex.SetTimeout(timeout)
	}

	info := r.Info(params)
	if info.BodyParser == nil {
		info.BodyParser = &app.BodyParserConfig{Limit: engine.options.MaxRequestBodySize}
	} else if info.BodyParser.Limit <= 0 {
		bp := *info.BodyParser
		bp.Limit = engine.options.MaxRequestBodySize
		info.BodyParser = &bp
	}
	ex.Init(ctx, info, nil)
	if ex.StatusCode() >= 400 {
		return engine.triage(ctx, ex)
	}

	internalStats.Record(ex.TraceInfo(), stats.HandleStart, nil)
	for _, mw := range engine.chain(r) {
		if err := mw.Invoke(ctx, ex); err != nil {
			internalStats.Record(ex.TraceInfo(), stats.HandleFinish, err)
			return err
		}
		if ex.IsLocked() {
			internalStats.Record(ex.TraceInfo(), stats.HandleFinish, nil)
			return nil
		}
		if ex.StatusCode() >= 400 {
			internalStats.Record(ex.TraceInfo(), stats.HandleFinish, nil)
			return engine.triage(ctx, ex)
		}
	}

	h := r.Handler
	h.Name = r.Name
	err := h.Invoke(ctx, ex)
	internalStats.Record(ex.TraceInfo(), stats.HandleFinish, err)
	if err != nil {
		return err
	}
	if !ex.IsLocked() {
		return engine.triage(ctx, ex)
	}
	return nil
}

func (engine *Engine) chain(r *Route) app.HandlersChain {
	if len(engine.middleware) == 0 {
		return r.Middleware
	}
	chain := make(app.HandlersChain, 0, len(engine.middleware)+len(r.Middleware))
	chain = append(chain, engine.middleware...)
	return append(chain, r.Middleware...)
}

// triage 为未锁定的交换体收尾：2xx/3xx 直接完成，404 交给 404 处理路由，
// 其他 >= 400 交给错误处理路由，处理后仍未锁定则完成。
func (engine *Engine) triage(ctx context.Context, ex *app.Exchange) (err error) {
	if ex.IsLocked() {
		return nil
	}
	internalStats.Record(ex.TraceInfo(), stats.TriageStart, nil)
	defer func() {
		internalStats.Record(ex.TraceInfo(), stats.TriageFinish, err)
	}()

	status := ex.StatusCode()
	if status < 400 {
		ex.End()
		return nil
	}

	var (
		fallback *Route
		ok       bool
	)
	if status == consts.StatusNotFound {
		fallback, ok = engine.router.MatchNotFound(ex.Path())
	} else {
		fallback, ok = engine.router.MatchError(ex.Path())
	}
	if ok {
		err = engine.runFallback(ctx, ex, fallback, status)
	}
	if !ex.IsLocked() {
		ex.End()
	}
	return err
}

// runFallback 执行兜底路由的中间件与处理器。
// 中间件锁定交换体或改变了状态码时不再执行后续处理器。
func (engine *Engine) runFallback(ctx context.Context, ex *app.Exchange, fallback *Route, status int) error {
	for _, mw := range fallback.Middleware {
		if err := mw.Invoke(ctx, ex); err != nil {
			return err
		}
		if ex.IsLocked() || ex.StatusCode() != status {
			return nil
		}
	}
	h := fallback.Handler
	h.Name = fallback.Name
	return h.Invoke(ctx, ex)
}

// handleChainError 兜底处理链的错误或恐慌：记录日志，未中止且状态码 < 400 时置 500，再分诊一次。
func (engine *Engine) handleChainError(ctx context.Context, ex *app.Exchange, r *Route, err error) {
	chainErr := ex.Error(errors.New(err, errors.ErrorTypeChain, map[string]any{"route": r.Name}))
	ex.Logger().Error(err)
	hlog.SystemLogger().CtxErrorf(ctx, hlog.EngineErrorFormat, err, ex.Path())
	ex.TraceInfo().Stats().SetError(chainErr)

	if !ex.IsLocked() && ex.StatusCode() < 400 {
		_ = ex.SetStatus(consts.StatusInternalServerError)
	}
	if ex.IsLocked() {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			ex.Logger().Error(panicError(rec))
		}
		if !ex.IsLocked() {
			ex.End()
		}
	}()
	if terr := engine.triage(ctx, ex); terr != nil {
		ex.Logger().Error(terr)
	}
}

func (engine *Engine) onPanic(ctx context.Context, ex *app.Exchange, rec any) {
	if engine.panicHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ex.Logger().Error(panicError(r))
		}
	}()
	engine.panicHandler(ctx, ex, rec)
}

// describeRequest 将标准请求属性写入记录器。
func (engine *Engine) describeRequest(ex *app.Exchange) {
	target := ex.Path()
	if q := ex.RawQuery(); q != "" {
		target += "?" + q
	}
	attrs := tracer.Attributes{
		tracer.AttrHTTPMethod:    ex.Method(),
		tracer.AttrHTTPTarget:    target,
		tracer.AttrClientAddress: ex.ClientIP(),
	}
	if host := ex.Host(); host != "" {
		attrs[tracer.AttrHTTPHost] = host
	}
	if ua := ex.Header(consts.HeaderUserAgent); ua != "" {
		attrs[tracer.AttrUserAgent] = ua
	}
	ex.Logger().SetAttributes(attrs)
}

// describeRoute 将路由元数据写入记录器。
func (engine *Engine) describeRoute(ex *app.Exchange, r *Route) {
	attrs := tracer.Attributes{
		tracer.AttrHTTPRoute: r.Path,
		tracer.AttrRouteName: r.Name,
		tracer.AttrRouteKind: string(r.Kind),
	}
	for k, v := range r.Meta {
		attrs["wind.route.meta."+k] = v
	}
	ex.Logger().SetAttributes(attrs)
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("处理器发生恐慌: %w\n%s", err, debug.Stack())
	}
	return fmt.Errorf("处理器发生恐慌: %v\n%s", rec, debug.Stack())
}
