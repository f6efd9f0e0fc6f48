// Package otelexport 把日志与跨度转交给 OpenTelemetry SDK。
//
// 跨度先进入缓冲区，排空时转换为 tracetest.SpanStub 快照，再交给 sdktrace.SpanExporter
// （如 stdouttrace、otlptracehttp）；日志通过 otel/log 的 Logger 发出，并携带跨度上下文。
package otelexport

import (
	"context"
	"errors"
	"fmt"

	"github.com/favbox/windx/common/json"
	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/exporter/buffer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

const defaultScope = "github.com/favbox/windx"

// Option 配置项。
type Option func(o *options)

type options struct {
	spans     sdktrace.SpanExporter
	logs      otellog.LoggerProvider
	resource  *resource.Resource
	scope     string
	batchSize int
}

// WithSpanExporter 设置跨度导出器。
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.spans = exp
	}
}

// WithLoggerProvider 设置日志提供者，如 sdklog.NewLoggerProvider 的结果。
func WithLoggerProvider(lp otellog.LoggerProvider) Option {
	return func(o *options) {
		o.logs = lp
	}
}

// WithResource 设置基础资源，全局属性会合并进去。
func WithResource(res *resource.Resource) Option {
	return func(o *options) {
		o.resource = res
	}
}

// WithScope 设置日志的仪表化作用域名称。
func WithScope(name string) Option {
	return func(o *options) {
		o.scope = name
	}
}

// WithBatchSize 设置缓冲区自动排空的阈值。
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// Exporter 基于缓冲区的 OpenTelemetry 导出器。
type Exporter struct {
	*buffer.Exporter
	sink *sink
}

// New 创建导出器。至少需要配置跨度导出器或日志提供者之一。
func New(opts ...Option) (*Exporter, error) {
	o := options{scope: defaultScope, batchSize: buffer.DefaultSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.spans == nil && o.logs == nil {
		return nil, errors.New("otelexport: 未配置跨度导出器或日志提供者")
	}

	s := &sink{opts: o, res: o.resource}
	if o.logs != nil {
		s.logger = o.logs.Logger(o.scope)
	}
	return &Exporter{
		Exporter: buffer.New(s, buffer.WithSize(o.batchSize)),
		sink:     s,
	}, nil
}

// Shutdown 排空缓冲区并关闭下游。
func (e *Exporter) Shutdown(ctx context.Context) error {
	err := e.Flush(ctx)
	if e.sink.opts.spans != nil {
		err = errors.Join(err, e.sink.opts.spans.Shutdown(ctx))
	}
	if s, ok := e.sink.opts.logs.(interface{ Shutdown(context.Context) error }); ok {
		err = errors.Join(err, s.Shutdown(ctx))
	}
	return err
}

type sink struct {
	opts   options
	res    *resource.Resource
	logger otellog.Logger
}

func (s *sink) Init(global tracer.Attributes) error {
	if len(global) == 0 {
		return nil
	}
	res, err := resource.Merge(s.opts.resource, resource.NewSchemaless(attributes(global)...))
	if err != nil {
		return err
	}
	s.res = res
	return nil
}

func (s *sink) WriteSpans(ctx context.Context, spans []tracer.SpanRecord) error {
	if s.opts.spans == nil {
		return nil
	}
	stubs := make(tracetest.SpanStubs, 0, len(spans))
	for _, rec := range spans {
		stub, err := s.stub(rec)
		if err != nil {
			return err
		}
		stubs = append(stubs, stub)
	}
	return s.opts.spans.ExportSpans(ctx, stubs.Snapshots())
}

func (s *sink) stub(rec tracer.SpanRecord) (tracetest.SpanStub, error) {
	sc, err := spanContext(rec.TraceID, rec.SpanID)
	if err != nil {
		return tracetest.SpanStub{}, err
	}
	var parent trace.SpanContext
	if rec.ParentSpanID != "" {
		if parent, err = spanContext(rec.TraceID, rec.ParentSpanID); err != nil {
			return tracetest.SpanStub{}, err
		}
	}

	kind := trace.SpanKindInternal
	switch {
	case rec.Attributes[tracer.AttrHTTPURL] != nil:
		kind = trace.SpanKindClient
	case rec.ParentSpanID == "":
		kind = trace.SpanKindServer
	}

	status := sdktrace.Status{Code: codes.Unset}
	if rec.Status != nil {
		status.Description = rec.Status.Message
		if rec.Status.Code == tracer.SpanStatusOK {
			status.Code = codes.Ok
		} else {
			status.Code = codes.Error
		}
	}

	return tracetest.SpanStub{
		Name:        rec.Name,
		SpanContext: sc,
		Parent:      parent,
		SpanKind:    kind,
		StartTime:   rec.Start,
		EndTime:     rec.End,
		Attributes:  attributes(rec.Attributes),
		Status:      status,
		Resource:    s.res,
	}, nil
}

func (s *sink) WriteLogs(ctx context.Context, logs []tracer.LogRecord) error {
	if s.logger == nil {
		return nil
	}
	for _, rec := range logs {
		var r otellog.Record
		r.SetTimestamp(rec.Time)
		r.SetSeverity(severity(rec.Level))
		r.SetSeverityText(rec.Level.String())
		r.SetBody(otellog.StringValue(rec.Message))
		r.AddAttributes(logAttributes(rec)...)

		emitCtx := ctx
		if sc, err := spanContext(rec.TraceID, rec.SpanID); err == nil {
			emitCtx = trace.ContextWithSpanContext(ctx, sc)
		} else if rec.TraceID != "" {
			r.AddAttributes(otellog.String("trace_id", rec.TraceID))
		}
		s.logger.Emit(emitCtx, r)
	}
	return nil
}

func (s *sink) Flush(ctx context.Context) error {
	if f, ok := s.opts.logs.(interface{ ForceFlush(context.Context) error }); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// spanContext 由十六进制 ID 构造已采样的跨度上下文；没有跨度 ID 时用追踪 ID 派生一个占位。
func spanContext(traceID, spanID string) (trace.SpanContext, error) {
	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("otelexport: 非法追踪 ID %q: %w", traceID, err)
	}
	sid, err := trace.SpanIDFromHex(spanID)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("otelexport: 非法跨度 ID %q: %w", spanID, err)
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	}), nil
}

func severity(lv tracer.Level) otellog.Severity {
	switch lv {
	case tracer.LevelDebug:
		return otellog.SeverityDebug
	case tracer.LevelWarn:
		return otellog.SeverityWarn
	case tracer.LevelError:
		return otellog.SeverityError
	default:
		return otellog.SeverityInfo
	}
}

func attributes(attrs tracer.Attributes) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			kvs = append(kvs, attribute.String(k, val))
		case bool:
			kvs = append(kvs, attribute.Bool(k, val))
		case int:
			kvs = append(kvs, attribute.Int(k, val))
		case int64:
			kvs = append(kvs, attribute.Int64(k, val))
		case float64:
			kvs = append(kvs, attribute.Float64(k, val))
		case []string:
			kvs = append(kvs, attribute.StringSlice(k, val))
		default:
			kvs = append(kvs, attribute.String(k, stringify(val)))
		}
	}
	return kvs
}

func logAttributes(rec tracer.LogRecord) []otellog.KeyValue {
	kvs := make([]otellog.KeyValue, 0, len(rec.Attributes)+1)
	for k, v := range rec.Attributes {
		switch val := v.(type) {
		case string:
			kvs = append(kvs, otellog.String(k, val))
		case bool:
			kvs = append(kvs, otellog.Bool(k, val))
		case int:
			kvs = append(kvs, otellog.Int(k, val))
		case int64:
			kvs = append(kvs, otellog.Int64(k, val))
		case float64:
			kvs = append(kvs, otellog.Float64(k, val))
		default:
			kvs = append(kvs, otellog.String(k, stringify(val)))
		}
	}
	if rec.Data != nil {
		kvs = append(kvs, otellog.String("data", stringify(rec.Data)))
	}
	return kvs
}

func stringify(v any) string {
	switch val := v.(type) {
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	}
	if s, err := json.MarshalToString(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
