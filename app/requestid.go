package app

import (
	"strings"

	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/protocol/consts"
)

// DefaultRequestIDHeaders 默认的请求 ID 来源及优先级。
func DefaultRequestIDHeaders() []string {
	return []string{consts.HeaderTraceParent, consts.HeaderXRequestID, consts.HeaderXTraceID}
}

// resolveRequestID 按优先级从请求头解析追踪 ID，均不合法时生成新 ID。
// 第二个返回值为命中的请求头名称，生成时为空。
func resolveRequestID(names []string, header func(string) string) (string, string) {
	for _, name := range names {
		v := header(name)
		if v == "" {
			continue
		}
		var (
			id string
			ok bool
		)
		if name == consts.HeaderTraceParent {
			id, ok = parseTraceParent(v)
		} else {
			id, ok = tracer.NormalizeTraceID(v)
		}
		if ok {
			return id, name
		}
	}
	return tracer.NewTraceID(), ""
}

// parseTraceParent 解析 W3C traceparent：version-traceid-parentid-flags。
func parseTraceParent(v string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) < 4 || len(parts[0]) != 2 || parts[0] == "ff" {
		return "", false
	}
	traceID := strings.ToLower(parts[1])
	if !tracer.IsValidTraceID(traceID) || !tracer.IsValidSpanID(strings.ToLower(parts[2])) {
		return "", false
	}
	return traceID, true
}
