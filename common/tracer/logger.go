package tracer

import (
	"context"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/favbox/windx/common/hlog"
	"github.com/zoobzio/clockz"
)

// Logger 绑定单个交换体的记录器。
//
// 持有持久属性与活动跨度栈，记录写入时合并属性并交给全部导出器。
// 方法可并发调用，但跨度的父子关系只在顺序嵌套时才有意义。
type Logger struct {
	clock       clockz.Clock
	debug       bool
	traceID     string
	exporters   []Exporter
	spanPushers []SpanPusher

	mu    sync.Mutex
	attrs Attributes
	stack []string
}

// TraceID 返回绑定的追踪 ID。
func (l *Logger) TraceID() string {
	return l.traceID
}

// IsDebug 是否输出 Debug 日志。
func (l *Logger) IsDebug() bool {
	return l.debug
}

// Debug 仅在调试开启时输出。
func (l *Logger) Debug(msg string, data ...any) {
	if !l.debug {
		return
	}
	l.emit(LevelDebug, msg, data)
}

func (l *Logger) Info(msg string, data ...any) {
	l.emit(LevelInfo, msg, data)
}

func (l *Logger) Log(msg string, data ...any) {
	l.emit(LevelLog, msg, data)
}

func (l *Logger) Warn(msg string, data ...any) {
	l.emit(LevelWarn, msg, data)
}

// Error 记录错误。v 可以是 error、字符串或任意值；
// 任意值记为 "Unknown error"，原值保存在 Data 中。
func (l *Logger) Error(v any, data ...any) {
	switch e := v.(type) {
	case error:
		l.emit(LevelError, e.Error(), data)
	case string:
		l.emit(LevelError, e, data)
	default:
		l.emit(LevelError, "Unknown error", append([]any{v}, data...))
	}
}

// SetAttribute 合并一个持久属性，对之后的每条记录和跨度可见。
func (l *Logger) SetAttribute(key string, value any) {
	l.mu.Lock()
	l.attrs[key] = value
	l.mu.Unlock()
}

// SetAttributes 合并多个持久属性。
func (l *Logger) SetAttributes(attrs Attributes) {
	l.mu.Lock()
	for k, v := range attrs {
		l.attrs[k] = v
	}
	l.mu.Unlock()
}

// Attributes 返回当前持久属性的拷贝。
func (l *Logger) Attributes() Attributes {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attrs.Clone()
}

// ActiveSpanID 返回栈顶跨度 ID，没有活动跨度时返回空串。
func (l *Logger) ActiveSpanID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.top()
}

// StartSpan 开启一个以当前活动跨度为父的跨度，并将其压栈。
func (l *Logger) StartSpan(name string) *Span {
	l.mu.Lock()
	parent := l.top()
	id := NewSpanID()
	l.stack = append(l.stack, id)
	l.mu.Unlock()

	return &Span{
		logger:   l,
		id:       id,
		parentID: parent,
		name:     name,
		start:    l.clock.Now(),
		attrs:    Attributes{},
	}
}

// Span 在跨度内执行 fn，无论 fn 返回错误还是恐慌，跨度都会结束。
func (l *Logger) Span(name string, fn func(span *Span) error) error {
	span := l.StartSpan(name)
	defer span.End()
	return fn(span)
}

// SpanValue 同 Logger.Span，并返回 fn 的结果。
func SpanValue[T any](l *Logger, name string, fn func(span *Span) (T, error)) (T, error) {
	span := l.StartSpan(name)
	defer span.End()
	return fn(span)
}

// Flush 并行刷新全部导出器。
func (l *Logger) Flush(ctx context.Context) error {
	return flushAll(ctx, l.exporters)
}

func (l *Logger) top() string {
	if n := len(l.stack); n > 0 {
		return l.stack[n-1]
	}
	return ""
}

// pop 移除栈中该跨度的条目；乱序结束时也只移除自己，其余跨度保持原位。
func (l *Logger) pop(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := slices.Index(l.stack, id); i >= 0 {
		l.stack = slices.Delete(l.stack, i, i+1)
	}
}

func (l *Logger) emit(lv Level, msg string, data []any) {
	l.mu.Lock()
	rec := LogRecord{
		Level:      lv,
		Time:       l.clock.Now(),
		Message:    msg,
		TraceID:    l.traceID,
		SpanID:     l.top(),
		Attributes: l.attrs.Clone(),
	}
	l.mu.Unlock()

	switch len(data) {
	case 0:
	case 1:
		rec.Data = data[0]
	default:
		rec.Data = data
	}

	for _, exp := range l.exporters {
		pushLog(exp, rec)
	}
}

func pushLog(exp Exporter, rec LogRecord) {
	defer func() {
		if p := recover(); p != nil {
			hlog.SystemLogger().Warnf("导出器 %T 写入日志时恐慌，该记录已丢弃：%v\n%s", exp, p, debug.Stack())
		}
	}()
	if err := exp.PushLog(rec); err != nil {
		hlog.SystemLogger().Warnf("导出器 %T 写入日志失败：%v", exp, err)
	}
}
