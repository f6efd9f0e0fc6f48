package tracer

import "context"

// Exporter 日志导出器，须支持多个交换体并发写入。
type Exporter interface {
	// Init 在首次使用前调用一次，传入全局属性。
	Init(global Attributes) error
	// PushLog 写入一条日志记录。
	PushLog(rec LogRecord) error
	// Flush 将缓冲的数据落盘或发出。
	Flush(ctx context.Context) error
}

// SpanPusher 能接收跨度的导出器额外实现此接口。
type SpanPusher interface {
	PushSpan(span SpanRecord)
}

// ExporterInit 惰性构造导出器的初始化函数，仅在首次使用时调用一次。
type ExporterInit func() ([]Exporter, error)
