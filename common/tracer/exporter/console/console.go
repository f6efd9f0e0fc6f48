// Package console 提供以 JSON 行写出日志（及可选跨度）的导出器。
package console

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/favbox/windx/common/json"
	"github.com/favbox/windx/common/tracer"
)

// Option 控制台导出器的配置项。
type Option func(o *options)

type options struct {
	w        io.Writer
	minLevel tracer.Level
}

// WithWriter 设置输出目标，默认 os.Stdout。
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.w = w
	}
}

// WithMinLevel 低于该级别的日志不输出。
func WithMinLevel(lv tracer.Level) Option {
	return func(o *options) {
		o.minLevel = lv
	}
}

type line struct {
	Kind   string             `json:"kind"`
	Global tracer.Attributes  `json:"global,omitempty"`
	Log    *tracer.LogRecord  `json:"log,omitempty"`
	Span   *tracer.SpanRecord `json:"span,omitempty"`
}

// Exporter 只写日志的控制台导出器。
type Exporter struct {
	opts   options
	mu     sync.Mutex
	enc    interface{ Encode(any) error }
	global tracer.Attributes
}

var _ tracer.Exporter = (*Exporter)(nil)

// New 创建只写日志的控制台导出器。
func New(opts ...Option) *Exporter {
	o := options{w: os.Stdout, minLevel: tracer.LevelDebug}
	for _, opt := range opts {
		opt(&o)
	}
	return &Exporter{opts: o, enc: json.NewEncoder(o.w)}
}

func (e *Exporter) Init(global tracer.Attributes) error {
	e.global = global
	return nil
}

func (e *Exporter) PushLog(rec tracer.LogRecord) error {
	if rec.Level < e.opts.minLevel {
		return nil
	}
	return e.write(line{Kind: "log", Global: e.global, Log: &rec})
}

// Flush 输出无缓冲，若写入器实现了 Sync 则同步落盘。
func (e *Exporter) Flush(context.Context) error {
	if s, ok := e.opts.w.(interface{ Sync() error }); ok && s != os.Stdout && s != os.Stderr {
		return s.Sync()
	}
	return nil
}

func (e *Exporter) write(l line) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(l)
}

// SpanExporter 同时写日志与跨度的控制台导出器。
type SpanExporter struct {
	*Exporter
}

var _ tracer.SpanPusher = (*SpanExporter)(nil)

// NewWithSpans 创建同时写出跨度的控制台导出器。
func NewWithSpans(opts ...Option) *SpanExporter {
	return &SpanExporter{Exporter: New(opts...)}
}

func (e *SpanExporter) PushSpan(span tracer.SpanRecord) {
	_ = e.write(line{Kind: "span", Global: e.global, Span: &span})
}
