package stats

import (
	"context"
	"runtime/debug"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/common/tracer/stats"
)

// Controller 用于控制生命周期跟踪器。
type Controller struct {
	tracers []app.Tracer
}

// Append 追加一个新的跟踪器到控制器。
func (ctl *Controller) Append(col app.Tracer) {
	ctl.tracers = append(ctl.tracers, col)
}

// DoStart 记录 HTTPStart 并按顺序启动跟踪器。
// 跟踪器恐慌时返回最后一个有效的上下文。
func (ctl *Controller) DoStart(ctx context.Context, ex *app.Exchange) (out context.Context) {
	out = ctx
	defer ctl.tryRecover()
	Record(ex.TraceInfo(), stats.HTTPStart, nil)

	for _, col := range ctl.tracers {
		if next := col.Start(out, ex); next != nil {
			out = next
		}
	}
	return out
}

// DoFinish 记录 HTTPFinish 并以相反的顺序调用跟踪器。
func (ctl *Controller) DoFinish(ctx context.Context, ex *app.Exchange, err error) {
	defer ctl.tryRecover()
	Record(ex.TraceInfo(), stats.HTTPFinish, err)
	if err != nil {
		ex.TraceInfo().Stats().SetError(err)
	}

	// 倒序执行
	for i := len(ctl.tracers) - 1; i >= 0; i-- {
		ctl.tracers[i].Finish(ctx, ex)
	}
}

// HasTracer 是否有跟踪器？
func (ctl *Controller) HasTracer() bool {
	return ctl != nil && len(ctl.tracers) > 0
}

func (ctl *Controller) tryRecover() {
	if err := recover(); err != nil {
		hlog.SystemLogger().Warnf("在调用跟踪器时出现恐慌。这不影响 http 调用，但可能丢失度量指标和日志等监控数据：%s, %s", err, string(debug.Stack()))
	}
}
