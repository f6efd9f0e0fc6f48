// Package buffer 提供批量缓冲导出器：多个交换体并发追加，按容量或显式刷新时排空到下游。
package buffer

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/common/tracer"
)

// Sink 接收排空后的批量记录。
type Sink interface {
	WriteLogs(ctx context.Context, logs []tracer.LogRecord) error
	WriteSpans(ctx context.Context, spans []tracer.SpanRecord) error
}

// Initializer 需要全局属性的下游可实现此接口。
type Initializer interface {
	Init(global tracer.Attributes) error
}

// Flusher 排空后还需要自行刷新的下游可实现此接口。
type Flusher interface {
	Flush(ctx context.Context) error
}

// DefaultSize 默认的自动排空阈值。
const DefaultSize = 512

// Option 缓冲导出器的配置项。
type Option func(e *Exporter)

// WithSize 设置触发自动排空的记录数，<= 0 时仅在 Flush 时排空。
func WithSize(n int) Option {
	return func(e *Exporter) {
		e.size = n
	}
}

// Exporter 基于环形队列的缓冲导出器。
//
// 追加只持有短暂的互斥锁；排空由 drainMu 串行化，保证下游按追加顺序收到记录。
// 不同交换体之间的记录不保证相对顺序。
type Exporter struct {
	sink Sink
	size int

	mu    sync.Mutex
	logs  *queue.Queue
	spans *queue.Queue

	drainMu sync.Mutex
}

var (
	_ tracer.Exporter   = (*Exporter)(nil)
	_ tracer.SpanPusher = (*Exporter)(nil)
)

// New 创建写入 sink 的缓冲导出器。
func New(sink Sink, opts ...Option) *Exporter {
	e := &Exporter{
		sink:  sink,
		size:  DefaultSize,
		logs:  queue.New(),
		spans: queue.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) Init(global tracer.Attributes) error {
	if i, ok := e.sink.(Initializer); ok {
		return i.Init(global)
	}
	return nil
}

func (e *Exporter) PushLog(rec tracer.LogRecord) error {
	e.mu.Lock()
	e.logs.Add(rec)
	full := e.full()
	e.mu.Unlock()

	if full {
		return e.drain(context.Background())
	}
	return nil
}

func (e *Exporter) PushSpan(span tracer.SpanRecord) {
	e.mu.Lock()
	e.spans.Add(span)
	full := e.full()
	e.mu.Unlock()

	if full {
		if err := e.drain(context.Background()); err != nil {
			hlog.SystemLogger().Warnf("缓冲导出器自动排空失败：%v", err)
		}
	}
}

// Flush 排空缓冲区，随后刷新下游。
func (e *Exporter) Flush(ctx context.Context) error {
	err := e.drain(ctx)
	if f, ok := e.sink.(Flusher); ok {
		err = errors.Join(err, f.Flush(ctx))
	}
	return err
}

// Len 返回缓冲中尚未排空的记录数。
func (e *Exporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logs.Length() + e.spans.Length()
}

func (e *Exporter) full() bool {
	return e.size > 0 && e.logs.Length()+e.spans.Length() >= e.size
}

func (e *Exporter) drain(ctx context.Context) error {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	e.mu.Lock()
	logs := make([]tracer.LogRecord, 0, e.logs.Length())
	for e.logs.Length() > 0 {
		logs = append(logs, e.logs.Remove().(tracer.LogRecord))
	}
	spans := make([]tracer.SpanRecord, 0, e.spans.Length())
	for e.spans.Length() > 0 {
		spans = append(spans, e.spans.Remove().(tracer.SpanRecord))
	}
	e.mu.Unlock()

	var err error
	if len(logs) > 0 {
		err = errors.Join(err, e.sink.WriteLogs(ctx, logs))
	}
	if len(spans) > 0 {
		err = errors.Join(err, e.sink.WriteSpans(ctx, spans))
	}
	return err
}
