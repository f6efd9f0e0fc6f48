package tracer

import (
	"maps"
	"time"
)

// Level 日志记录的级别。
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelLog
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "log", "warn", "error"}

func (lv Level) String() string {
	if lv >= LevelDebug && lv <= LevelError {
		return levelNames[lv]
	}
	return "unknown"
}

// Attributes 日志与跨度上携带的结构化属性。
type Attributes map[string]any

// Clone 返回属性的浅拷贝，nil 返回空映射。
func (a Attributes) Clone() Attributes {
	c := make(Attributes, len(a))
	maps.Copy(c, a)
	return c
}

// Merge 返回 a 与 b 合并后的新属性，同名键以 b 为准。
func (a Attributes) Merge(b Attributes) Attributes {
	c := make(Attributes, len(a)+len(b))
	maps.Copy(c, a)
	maps.Copy(c, b)
	return c
}

// LogRecord 单次日志调用产生的记录，交给导出器后不再保留。
type LogRecord struct {
	Level      Level      `json:"level"`
	Time       time.Time  `json:"time"`
	Message    string     `json:"message"`
	Data       any        `json:"data,omitempty"`
	TraceID    string     `json:"trace_id,omitempty"`
	SpanID     string     `json:"span_id,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// 跨度状态码，与 OpenTelemetry 的 Ok/Error 对应。
const (
	SpanStatusOK    = 1
	SpanStatusError = 2
)

// SpanStatus 由 otel.status_code 属性推导的跨度状态。
type SpanStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// SpanRecord 已结束的跨度。
type SpanRecord struct {
	TraceID      string      `json:"trace_id"`
	SpanID       string      `json:"span_id"`
	ParentSpanID string      `json:"parent_span_id,omitempty"`
	Name         string      `json:"name"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Attributes   Attributes  `json:"attributes,omitempty"`
	Status       *SpanStatus `json:"status,omitempty"`
}

// Duration 跨度耗时。
func (s SpanRecord) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
