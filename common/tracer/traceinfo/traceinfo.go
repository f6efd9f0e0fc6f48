package traceinfo

import (
	"github.com/favbox/windx/common/tracer/stats"
	"github.com/zoobzio/clockz"
)

// TraceInfo 交换体上的生命周期跟踪信息。
type TraceInfo interface {
	// Stats 获取生命周期统计。
	Stats() HTTPStats
	// Reset 重置统计。
	Reset()
}

type traceInfo struct {
	stats HTTPStats
}

func (t *traceInfo) Stats() HTTPStats {
	return t.stats
}

func (t *traceInfo) Reset() {
	t.stats.Reset()
}

// NewTraceInfo 创建跟踪信息，clock 为 nil 时使用真实时钟。
func NewTraceInfo(clock clockz.Clock, level stats.Level) TraceInfo {
	return &traceInfo{stats: NewHTTPStats(clock, level)}
}
