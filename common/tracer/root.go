package tracer

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/favbox/windx/common/hlog"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"
)

// Option 根记录器的配置项。
type Option func(o *options)

type options struct {
	init   ExporterInit
	global Attributes
	debug  bool
	clock  clockz.Clock
}

// WithExporterInit 设置惰性构造导出器的初始化函数。
func WithExporterInit(init ExporterInit) Option {
	return func(o *options) {
		o.init = init
	}
}

// WithExporters 直接提供导出器，等价于返回这些导出器的初始化函数。
func WithExporters(exporters ...Exporter) Option {
	return func(o *options) {
		o.init = func() ([]Exporter, error) {
			return exporters, nil
		}
	}
}

// WithGlobalAttributes 设置传给 Exporter.Init 并附加到每个记录器的全局属性。
func WithGlobalAttributes(attrs Attributes) Option {
	return func(o *options) {
		o.global = o.global.Merge(attrs)
	}
}

// WithDebug 开启后所有记录器都输出 Debug 级别日志。
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithClock 设置时钟，测试时可注入假时钟。
func WithClock(clock clockz.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// RootLogger 进程级根记录器，持有导出器并为每个交换体派生 Logger。
type RootLogger struct {
	opts options

	once        sync.Once
	exporters   []Exporter
	spanPushers []SpanPusher
}

// NewRootLogger 创建根记录器。导出器在首次派生或刷新时才初始化。
func NewRootLogger(opts ...Option) *RootLogger {
	o := options{clock: clockz.RealClock}
	for _, opt := range opts {
		opt(&o)
	}
	return &RootLogger{opts: o}
}

// SpawnConfig 派生记录器的参数。
type SpawnConfig struct {
	// TraceID 不是合法的 32 位小写十六进制时重新生成。
	TraceID string
	// Attributes 记录器的初始属性，叠加在全局属性之上。
	Attributes Attributes
	// Debug 为真或根记录器开启调试时输出 Debug 日志。
	Debug bool
}

// Spawn 派生一个绑定追踪 ID 的记录器。
func (r *RootLogger) Spawn(cfg SpawnConfig) *Logger {
	r.resolve()

	traceID := cfg.TraceID
	if !IsValidTraceID(traceID) {
		traceID = NewTraceID()
	}
	return &Logger{
		clock:       r.opts.clock,
		debug:       r.opts.debug || cfg.Debug,
		traceID:     traceID,
		attrs:       r.opts.global.Merge(cfg.Attributes),
		exporters:   r.exporters,
		spanPushers: r.spanPushers,
	}
}

// Exporters 返回已初始化的导出器。
func (r *RootLogger) Exporters() []Exporter {
	r.resolve()
	return r.exporters
}

// SpanAware 是否至少有一个导出器能接收跨度。
func (r *RootLogger) SpanAware() bool {
	r.resolve()
	return len(r.spanPushers) > 0
}

// Flush 并行刷新全部导出器，通常在进程退出前调用。
func (r *RootLogger) Flush(ctx context.Context) error {
	r.resolve()
	return flushAll(ctx, r.exporters)
}

func (r *RootLogger) resolve() {
	r.once.Do(func() {
		if r.opts.init == nil {
			return
		}
		exporters, err := r.opts.init()
		if err != nil {
			hlog.SystemLogger().Errorf("初始化日志导出器失败：%v", err)
			return
		}
		for _, exp := range exporters {
			if exp == nil {
				continue
			}
			if err := exp.Init(r.opts.global.Clone()); err != nil {
				hlog.SystemLogger().Errorf("导出器 %T 初始化失败，已忽略：%v", exp, err)
				continue
			}
			r.exporters = append(r.exporters, exp)
			if sp, ok := exp.(SpanPusher); ok {
				r.spanPushers = append(r.spanPushers, sp)
			}
		}
	})
}

func flushAll(ctx context.Context, exporters []Exporter) error {
	var g errgroup.Group
	for _, exp := range exporters {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("导出器 %T 刷新时恐慌：%v", exp, p)
					hlog.SystemLogger().Warnf("%v\n%s", err, debug.Stack())
				}
			}()
			return exp.Flush(ctx)
		})
	}
	return g.Wait()
}
