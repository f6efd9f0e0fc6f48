package ut

import (
	"io"
	"net/http/httptest"

	"github.com/favbox/windx/network/standard"
	"github.com/favbox/windx/route"
)

// Header 表明一个 http 标头的键值对。
type Header struct {
	Key   string
	Value string
}

// Body 用于设置请求正文，Len < 0 表示长度未知。
type Body struct {
	Body io.Reader
	Len  int
}

// PerformRequest 发送一个构造好的请求至给定引擎（无需网络传输）。
//
// url 可以是标准的相对路径，也可以是绝对路径。
// 请求经由 network/standard 的处理器完成，返回的 ResponseRecorder 已写入完整响应，
// 后置回调也已执行（交换体被中止时除外，此时处理器可能仍在运行）。
//
// 查看 ./request_test.go 了解更多示例。
func PerformRequest(engine *route.Engine, method, url string, body *Body, headers ...Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		r = body.Body
	}
	req := httptest.NewRequest(method, url, r)
	if body != nil {
		req.ContentLength = int64(body.Len)
	}
	for _, h := range headers {
		req.Header.Add(h.Key, h.Value)
	}

	w := httptest.NewRecorder()
	standard.NewHandler(engine, engine.GetOptions().MaxRequestBodySize).ServeHTTP(w, req)
	return w
}
