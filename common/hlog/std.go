package hlog

import (
	"log"
	"strings"
)

// NewStdLogger 返回以 lv 级别写入系统记录器的 *log.Logger，用于 http.Server.ErrorLog 等标准库接口。
func NewStdLogger(lv Level) *log.Logger {
	return log.New(stdWriter{lv: lv}, "", 0)
}

type stdWriter struct {
	lv Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	l := SystemLogger()
	switch {
	case w.lv >= LevelError:
		l.Error(msg)
	case w.lv >= LevelWarn:
		l.Warn(msg)
	case w.lv >= LevelInfo:
		l.Info(msg)
	default:
		l.Debug(msg)
	}
	return len(p), nil
}
