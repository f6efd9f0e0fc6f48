// Package zaplog 提供写入 zap 的日志导出器。
//
// 该导出器不接收跨度，跨度需要配合其他导出器输出。
package zaplog

import (
	"context"
	"errors"
	"slices"
	"syscall"

	"github.com/favbox/windx/common/tracer"
	"go.uber.org/zap"
)

// Exporter 把日志记录转换为 zap 结构化日志。
type Exporter struct {
	base   *zap.Logger
	logger *zap.Logger
}

var _ tracer.Exporter = (*Exporter)(nil)

// New 包装已有的 zap 记录器，nil 时使用 zap.NewProduction。
func New(logger *zap.Logger) (*Exporter, error) {
	if logger == nil {
		var err error
		if logger, err = zap.NewProduction(); err != nil {
			return nil, err
		}
	}
	return &Exporter{base: logger, logger: logger}, nil
}

// Init 以全局属性作为固定字段。
func (e *Exporter) Init(global tracer.Attributes) error {
	e.logger = e.base.With(attributeFields(global)...)
	return nil
}

func (e *Exporter) PushLog(rec tracer.LogRecord) error {
	fields := make([]zap.Field, 0, len(rec.Attributes)+3)
	if rec.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rec.TraceID))
	}
	if rec.SpanID != "" {
		fields = append(fields, zap.String("span_id", rec.SpanID))
	}
	if rec.Data != nil {
		fields = append(fields, zap.Any("data", rec.Data))
	}
	fields = append(fields, attributeFields(rec.Attributes)...)

	switch rec.Level {
	case tracer.LevelDebug:
		e.logger.Debug(rec.Message, fields...)
	case tracer.LevelWarn:
		e.logger.Warn(rec.Message, fields...)
	case tracer.LevelError:
		e.logger.Error(rec.Message, fields...)
	default:
		e.logger.Info(rec.Message, fields...)
	}
	return nil
}

// Flush 同步 zap 缓冲。终端设备不支持 fsync，相应错误忽略。
func (e *Exporter) Flush(context.Context) error {
	err := e.logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}

func attributeFields(attrs tracer.Attributes) []zap.Field {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, attrs[k]))
	}
	return fields
}
