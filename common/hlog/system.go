package hlog

import (
	"context"
	"io"
)

const systemLogPrefix = "wind: "

// EngineErrorFormat 分发引擎兜底错误的日志格式，静默模式下不输出。
const EngineErrorFormat = "分发引擎兜底错误=%v 路径=%s"

var silentMode = false

// SetSilentMode 设置系统日志的静默开关。
// 开启后，分发引擎兜底捕获的错误（EngineErrorFormat）不再输出。
func SetSilentMode(s bool) {
	silentMode = s
}

// systemLogger 为每条日志加上框架前缀。
type systemLogger struct {
	logger FullLogger
	prefix string
}

func (l *systemLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

func (l *systemLogger) SetLevel(lv Level) {
	l.logger.SetLevel(lv)
}

func (l *systemLogger) Trace(v ...any) {
	l.logger.Trace(append([]any{l.prefix}, v...)...)
}

func (l *systemLogger) Debug(v ...any) {
	l.logger.Debug(append([]any{l.prefix}, v...)...)
}

func (l *systemLogger) Info(v ...any) {
	l.logger.Info(append([]any{l.prefix}, v...)...)
}

func (l *systemLogger) Notice(v ...any) {
	l.logger.Notice(append([]any{l.prefix}, v...)...)
}

func (l *systemLogger) Warn(v ...any) {
	l.logger.Warn(append([]any{l.prefix}, v...)...)
}

func (l *systemLogger) Error(v ...any) {
	l.logger.Error(append([]any{l.prefix}, v...)...)
}

func (l *systemLogger) Fatal(v ...any) {
	l.logger.Fatal(append([]any{l.prefix}, v...)...)
}

func (l *systemLogger) Tracef(format string, v ...any) {
	l.logger.Tracef(l.prefix+format, v...)
}

func (l *systemLogger) Debugf(format string, v ...any) {
	l.logger.Debugf(l.prefix+format, v...)
}

func (l *systemLogger) Infof(format string, v ...any) {
	l.logger.Infof(l.prefix+format, v...)
}

func (l *systemLogger) Noticef(format string, v ...any) {
	l.logger.Noticef(l.prefix+format, v...)
}

func (l *systemLogger) Warnf(format string, v ...any) {
	l.logger.Warnf(l.prefix+format, v...)
}

func (l *systemLogger) Errorf(format string, v ...any) {
	if silentMode && format == EngineErrorFormat {
		return
	}
	l.logger.Errorf(l.prefix+format, v...)
}

func (l *systemLogger) Fatalf(format string, v ...any) {
	l.logger.Fatalf(l.prefix+format, v...)
}

func (l *systemLogger) CtxTracef(ctx context.Context, format string, v ...any) {
	l.logger.CtxTracef(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxDebugf(ctx context.Context, format string, v ...any) {
	l.logger.CtxDebugf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxInfof(ctx context.Context, format string, v ...any) {
	l.logger.CtxInfof(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxNoticef(ctx context.Context, format string, v ...any) {
	l.logger.CtxNoticef(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxWarnf(ctx context.Context, format string, v ...any) {
	l.logger.CtxWarnf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxErrorf(ctx context.Context, format string, v ...any) {
	if silentMode && format == EngineErrorFormat {
		return
	}
	l.logger.CtxErrorf(ctx, l.prefix+format, v...)
}

func (l *systemLogger) CtxFatalf(ctx context.Context, format string, v ...any) {
	l.logger.CtxFatalf(ctx, l.prefix+format, v...)
}
