package tracer

// 约定的属性键。
const (
	AttrHTTPStatusCode        = "http.status_code"
	AttrHTTPMethod            = "http.method"
	AttrHTTPTarget            = "http.target"
	AttrHTTPRoute             = "http.route"
	AttrHTTPHost              = "http.host"
	AttrHTTPURL               = "http.url"
	AttrUserAgent             = "user_agent.original"
	AttrClientAddress         = "client.address"
	AttrRouteName             = "wind.route.name"
	AttrRouteKind             = "wind.route.kind"
	AttrRequestID             = "wind.request_id"
	AttrOtelStatusCode        = "otel.status_code"
	AttrOtelStatusDescription = "otel.status_description"
	AttrServiceName           = "service.name"
	AttrServiceVersion        = "service.version"
)

// otel.status_code 的取值。
const (
	StatusCodeOK    = "OK"
	StatusCodeError = "ERROR"
)

// StatusCodeFor 将 HTTP 状态码归类：>= 500 为 ERROR，其余为 OK。
func StatusCodeFor(httpStatus int) string {
	if httpStatus >= 500 {
		return StatusCodeError
	}
	return StatusCodeOK
}

// deriveStatus 从合并后的属性推导跨度状态，未设置 otel.status_code 时返回 nil。
func deriveStatus(attrs Attributes) *SpanStatus {
	v, ok := attrs[AttrOtelStatusCode]
	if !ok {
		return nil
	}
	st := &SpanStatus{Code: SpanStatusError}
	if s, _ := v.(string); s == StatusCodeOK {
		st.Code = SpanStatusOK
	}
	if msg, ok := attrs[AttrOtelStatusDescription].(string); ok {
		st.Message = msg
	}
	return st
}
