package consts

// HTTP 方法
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
)

// HasBody 判断该方法的请求是否按惯例携带正文。
func HasBody(method string) bool {
	switch method {
	case MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}
