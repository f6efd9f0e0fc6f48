package tracer

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/favbox/windx/common/hlog"
)

// Span 由 Logger.StartSpan 创建，End 后出栈。
type Span struct {
	logger   *Logger
	id       string
	parentID string
	name     string
	start    time.Time

	mu    sync.Mutex
	attrs Attributes
	ended bool
}

func (s *Span) ID() string {
	return s.id
}

func (s *Span) ParentID() string {
	return s.parentID
}

func (s *Span) Name() string {
	return s.name
}

// SetAttribute 设置跨度自身的属性。
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// SetAttributes 合并跨度自身的属性。
func (s *Span) SetAttributes(attrs Attributes) {
	s.mu.Lock()
	for k, v := range attrs {
		s.attrs[k] = v
	}
	s.mu.Unlock()
}

// End 结束跨度并恢复父跨度为活动跨度。重复调用无效。
//
// 属性为记录器属性与跨度属性的合并，状态取自 otel.status_code。
// 仅当存在追踪 ID 且至少有一个能接收跨度的导出器时才推送。
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	own := s.attrs
	s.mu.Unlock()

	l := s.logger
	end := l.clock.Now()
	l.pop(s.id)

	if l.traceID == "" || len(l.spanPushers) == 0 {
		return
	}

	attrs := l.Attributes().Merge(own)
	rec := SpanRecord{
		TraceID:      l.traceID,
		SpanID:       s.id,
		ParentSpanID: s.parentID,
		Name:         s.name,
		Start:        s.start,
		End:          end,
		Attributes:   attrs,
		Status:       deriveStatus(attrs),
	}
	for _, sp := range l.spanPushers {
		pushSpan(sp, rec)
	}
}

func pushSpan(sp SpanPusher, rec SpanRecord) {
	defer func() {
		if p := recover(); p != nil {
			hlog.SystemLogger().Warnf("导出器 %T 写入跨度时恐慌，该跨度已丢弃：%v\n%s", sp, p, debug.Stack())
		}
	}()
	sp.PushSpan(rec)
}
