package consts

// 交换体内部统一使用小写的头部名称。
const (
	HeaderAllow              = "allow"
	HeaderAuthorization      = "authorization"
	HeaderCacheControl       = "cache-control"
	HeaderContentDisposition = "content-disposition"
	HeaderContentLength      = "content-length"
	HeaderContentType        = "content-type"
	HeaderHost               = "host"
	HeaderLocation           = "location"
	HeaderUserAgent          = "user-agent"
	HeaderWWWAuthenticate    = "www-authenticate"

	HeaderTraceParent    = "traceparent"
	HeaderXRequestID     = "x-request-id"
	HeaderXTraceID       = "x-trace-id"
	HeaderXForwardedFor  = "x-forwarded-for"
	HeaderXRealIP        = "x-real-ip"
	HeaderCFConnectingIP = "cf-connecting-ip"
	HeaderTrueClientIP   = "true-client-ip"
	HeaderXClientIP      = "x-client-ip"
	HeaderFlyClientIP    = "fly-client-ip"
)

// MIME 类型
const (
	MIMEApplicationJSON = "application/json; charset=utf-8"
	MIMETextHTML        = "text/html; charset=utf-8"
	MIMETextPlain       = "text/plain; charset=utf-8"
	MIMEOctetStream     = "application/octet-stream"

	MIMEJSON          = "application/json"
	MIMEPOSTForm      = "application/x-www-form-urlencoded"
	MIMEMultipartForm = "multipart/form-data"
	MIMEPlain         = "text/plain"
)
