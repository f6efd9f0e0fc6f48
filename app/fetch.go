package app

import (
	"context"
	"net/http"

	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/tracer"
)

// Fetch 在名为 "METHOD URL" 的跨度中发起出站请求。
//
// 配置了 TraceHeader 时追踪 ID 会注入出站请求头，远端状态码写入跨度属性。
// 这是交换体唯一向调用方返回错误的操作。
func (ex *Exchange) Fetch(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.Wrap(errors.ErrInvalidPayload, errors.ErrorTypeSubCall, "出站请求为空")
	}

	span := ex.logger.StartSpan(req.Method + " " + req.URL.String())
	defer span.End()
	span.SetAttributes(tracer.Attributes{
		tracer.AttrHTTPMethod: req.Method,
		tracer.AttrHTTPURL:    req.URL.String(),
	})

	if req.Context() == context.Background() {
		req = req.WithContext(ex.ctx)
	}
	if ex.traceHeader != "" {
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		req.Header.Set(ex.traceHeader, ex.TraceID())
	}

	client := ex.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		span.SetAttributes(tracer.Attributes{
			tracer.AttrOtelStatusCode:        tracer.StatusCodeError,
			tracer.AttrOtelStatusDescription: err.Error(),
		})
		ex.logger.Error(err, req.Method+" "+req.URL.String())
		return nil, errors.New(err, errors.ErrorTypeSubCall, map[string]any{
			"method": req.Method,
			"url":    req.URL.String(),
		})
	}

	span.SetAttributes(tracer.Attributes{
		tracer.AttrHTTPStatusCode: resp.StatusCode,
		tracer.AttrOtelStatusCode: tracer.StatusCodeFor(resp.StatusCode),
	})
	return resp, nil
}
