package main

import (
	"context"
	"fmt"
	"io"

	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/exporter/console"
	"github.com/favbox/windx/common/tracer/exporter/otelexport"
	"github.com/favbox/windx/common/tracer/exporter/zaplog"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newExporters 按配置创建导出器，返回的关闭函数须在服务退出后调用。
func newExporters(ctx context.Context, cfg config.ExporterFile, out io.Writer) (tracer.ExporterInit, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var exporters []tracer.Exporter
	shutdown := noop
	switch cfg.Kind {
	case "none":
		return nil, noop, nil
	case "console":
		exporters = append(exporters, console.NewWithSpans(console.WithWriter(out)))
	case "zap":
		zl, err := zaplog.New(nil)
		if err != nil {
			return nil, nil, err
		}
		// zap 只接收日志，跨度仍写到控制台
		exporters = append(exporters, zl, spansOnly{console.NewWithSpans(console.WithWriter(out))})
	case "otel":
		exp, err := newOtelExporter(ctx, cfg, out)
		if err != nil {
			return nil, nil, err
		}
		exporters = append(exporters, exp)
		shutdown = exp.Shutdown
	default:
		return nil, nil, fmt.Errorf("未知的导出器类型 %q", cfg.Kind)
	}

	return func() ([]tracer.Exporter, error) { return exporters, nil }, shutdown, nil
}

func newOtelExporter(ctx context.Context, cfg config.ExporterFile, out io.Writer) (*otelexport.Exporter, error) {
	var (
		spans sdktrace.SpanExporter
		err   error
	)
	if cfg.Endpoint == "" {
		spans, err = stdouttrace.New(stdouttrace.WithWriter(out))
	} else {
		spans, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	}
	if err != nil {
		return nil, err
	}

	opts := []otelexport.Option{
		otelexport.WithSpanExporter(spans),
		otelexport.WithResource(resource.Default()),
	}
	if cfg.Logs {
		logs, err := stdoutlog.New(stdoutlog.WithWriter(out))
		if err != nil {
			return nil, err
		}
		lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(logs)))
		opts = append(opts, otelexport.WithLoggerProvider(lp))
	}
	return otelexport.New(opts...)
}

// spansOnly 丢弃日志，只转发跨度。
type spansOnly struct {
	*console.SpanExporter
}

func (spansOnly) PushLog(tracer.LogRecord) error { return nil }
