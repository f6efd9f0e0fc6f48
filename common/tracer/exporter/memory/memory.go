// Package memory 提供把日志和跨度保存在内存中的导出器，用于测试断言。
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/favbox/windx/common/tracer"
)

// Exporter 记录收到的全部日志、跨度与刷新次数。
type Exporter struct {
	mu      sync.Mutex
	global  tracer.Attributes
	inits   int
	flushes int
	logs    []tracer.LogRecord
	spans   []tracer.SpanRecord
}

var (
	_ tracer.Exporter   = (*Exporter)(nil)
	_ tracer.SpanPusher = (*Exporter)(nil)
)

// New 创建能接收跨度的内存导出器。
func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Init(global tracer.Attributes) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inits++
	e.global = global
	return nil
}

func (e *Exporter) PushLog(rec tracer.LogRecord) error {
	e.mu.Lock()
	e.logs = append(e.logs, rec)
	e.mu.Unlock()
	return nil
}

func (e *Exporter) PushSpan(span tracer.SpanRecord) {
	e.mu.Lock()
	e.spans = append(e.spans, span)
	e.mu.Unlock()
}

func (e *Exporter) Flush(context.Context) error {
	e.mu.Lock()
	e.flushes++
	e.mu.Unlock()
	return nil
}

// Logs 返回已收到日志的拷贝。
func (e *Exporter) Logs() []tracer.LogRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.logs)
}

// LogsAt 返回指定级别的日志。
func (e *Exporter) LogsAt(lv tracer.Level) []tracer.LogRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []tracer.LogRecord
	for _, rec := range e.logs {
		if rec.Level == lv {
			out = append(out, rec)
		}
	}
	return out
}

// Spans 按结束顺序返回已收到跨度的拷贝。
func (e *Exporter) Spans() []tracer.SpanRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.spans)
}

// SpanByName 返回第一个同名跨度。
func (e *Exporter) SpanByName(name string) (tracer.SpanRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.spans {
		if s.Name == name {
			return s, true
		}
	}
	return tracer.SpanRecord{}, false
}

func (e *Exporter) FlushCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushes
}

func (e *Exporter) InitCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

func (e *Exporter) Global() tracer.Attributes {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global
}

// Reset 清空已记录的数据。
func (e *Exporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logs, e.spans, e.flushes = nil, nil, 0
}

// LogExporter 只接收日志的内存导出器，不实现 PushSpan。
type LogExporter struct {
	inner Exporter
}

var _ tracer.Exporter = (*LogExporter)(nil)

// NewLogOnly 创建只接收日志的内存导出器。
func NewLogOnly() *LogExporter {
	return &LogExporter{}
}

func (e *LogExporter) Init(global tracer.Attributes) error { return e.inner.Init(global) }

func (e *LogExporter) PushLog(rec tracer.LogRecord) error { return e.inner.PushLog(rec) }

func (e *LogExporter) Flush(ctx context.Context) error { return e.inner.Flush(ctx) }

func (e *LogExporter) Logs() []tracer.LogRecord { return e.inner.Logs() }

func (e *LogExporter) FlushCount() int { return e.inner.FlushCount() }
