package standard

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/protocol/consts"
	"github.com/favbox/windx/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(opts ...config.Option) *route.Engine {
	opts = append([]config.Option{{F: func(o *config.Options) {
		o.DisablePrintRoute = true
	}}}, opts...)
	return route.NewEngine(config.NewOptions(opts))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServeJSONBody(t *testing.T) {
	engine := newTestEngine()
	engine.POST("/echo", func(ctx context.Context, ex *app.Exchange) error {
		ex.JSON(ex.Body())
		return nil
	})
	h := NewHandler(engine, 1024)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"wind","tags":["a"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(h, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"wind","tags":["a"]}`, w.Body.String())
	assert.Equal(t, consts.MIMEApplicationJSON, w.Header().Get("Content-Type"))
	assert.Equal(t, "28", w.Header().Get("Content-Length"))
}

func TestServeBodyKinds(t *testing.T) {
	var got any
	engine := newTestEngine()
	engine.POST("/body", func(ctx context.Context, ex *app.Exchange) error {
		got = ex.Body()
		ex.Status(consts.StatusNoContent)
		return nil
	})
	h := NewHandler(engine, 1024)

	tests := []struct {
		name        string
		contentType string
		body        string
		want        any
	}{
		{"form", consts.MIMEPOSTForm, "a=1&b=2&b=3", url.Values{"a": {"1"}, "b": {"2", "3"}}},
		{"text", "text/plain; charset=utf-8", "hello", "hello"},
		{"raw", "application/octet-stream", "\x00\x01", []byte{0, 1}},
		{"no content type", "", "raw", []byte("raw")},
		{"empty json", consts.MIMEJSON, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodPost, "/body", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := serve(h, req)
			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServeMultipartBody(t *testing.T) {
	var form *multipart.Form
	engine := newTestEngine()
	engine.POST("/upload", func(ctx context.Context, ex *app.Exchange) error {
		form, _ = ex.Body().(*multipart.Form)
		ex.Status(consts.StatusCreated)
		return nil
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "报告"))
	fw, err := mw.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("content"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := serve(NewHandler(engine, 1<<20), req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, form)
	assert.Equal(t, []string{"报告"}, form.Value["title"])
	assert.Equal(t, "a.txt", form.File["file"][0].Filename)
}

func TestServeBodyFailures(t *testing.T) {
	engine := newTestEngine()
	engine.POST("/limited", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("ok")
		return nil
	}).WithBodyParser(app.BodyParserConfig{Limit: 4})
	engine.POST("/json-only", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("ok")
		return nil
	}).WithBodyParser(app.BodyParserConfig{AllowedTypes: []string{consts.MIMEJSON}})
	h := NewHandler(engine, 1024)

	t.Run("too large", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodPost, "/limited", strings.NewReader("0123456789")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("too large without content length", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/limited", strings.NewReader("0123456789"))
		req.ContentLength = -1
		w := serve(h, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("content type not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/json-only", strings.NewReader("a=1"))
		req.Header.Set("Content-Type", consts.MIMEPOSTForm)
		w := serve(h, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/json-only", strings.NewReader("{"))
		req.Header.Set("Content-Type", consts.MIMEJSON)
		w := serve(h, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServeAbortWritesImmediately(t *testing.T) {
	release := make(chan struct{})
	hookDone := make(chan struct{})
	engine := newTestEngine()
	engine.GET("/slow", func(ctx context.Context, ex *app.Exchange) error {
		ex.AddAfter(func(context.Context) error {
			close(hookDone)
			return nil
		})
		<-release
		ex.Text("too late")
		return nil
	}).WithTimeout(20 * time.Millisecond)

	w := serve(NewHandler(engine, 1024), httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Empty(t, w.Body.String())

	select {
	case <-hookDone:
		t.Fatal("处理器返回前不应执行后置回调")
	default:
	}
	close(release)
	select {
	case <-hookDone:
	case <-time.After(time.Second):
		t.Fatal("后置回调未执行")
	}
}

func TestLoadBodyAfterWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("hello"))
	req.Header.Set("Content-Type", consts.MIMETextPlain)
	a := newAdapter(req, 1024)
	a.markWritten()

	v, err := a.LoadBody(context.Background(), nil)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, errors.ErrAborted)
}

func TestServeAfterHooksRunAfterWrite(t *testing.T) {
	var written string
	w := httptest.NewRecorder()
	engine := newTestEngine()
	engine.GET("/ping", func(ctx context.Context, ex *app.Exchange) error {
		ex.AddAfter(func(context.Context) error {
			written = w.Body.String()
			return nil
		})
		ex.Text("pong", app.WithCache("no-cache"))
		return nil
	})

	NewHandler(engine, 1024).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "pong", written)
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, consts.MIMETextPlain, w.Header().Get("Content-Type"))
}

func TestServeFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.css")
	require.NoError(t, os.WriteFile(file, []byte("body{}"), 0o600))

	engine := newTestEngine()
	engine.GET("/static/:name", func(ctx context.Context, ex *app.Exchange) error {
		name, _ := ex.Get("name")
		ex.File(filepath.Join(dir, name.(string)), app.WithDownload(""))
		return nil
	})
	h := NewHandler(engine, 1024)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())
	assert.Equal(t, "6", w.Header().Get("Content-Length"))
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=app.css", w.Header().Get("Content-Disposition"))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/static/missing.css", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeRequestView(t *testing.T) {
	var seen struct {
		ip, host, query, ua, id string
	}
	engine := newTestEngine(config.Option{F: func(o *config.Options) {
		o.IPHeaders = []string{}
	}})
	engine.GET("/who", func(ctx context.Context, ex *app.Exchange) error {
		seen.ip = ex.ClientIP()
		seen.host = ex.Host()
		seen.query = ex.RawQuery()
		seen.ua = ex.Header("user-agent")
		seen.id = ex.RequestID()
		ex.Redirect("next")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/who?a=1", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("User-Agent", "test")
	req.Header.Set("X-Request-ID", "4bf92f3577b34da6a3ce929d0e0e4736")
	w := serve(NewHandler(engine, 1024), req)

	assert.Equal(t, "10.1.2.3", seen.ip)
	assert.Equal(t, "http://example.com", seen.host)
	assert.Equal(t, "a=1", seen.query)
	assert.Equal(t, "test", seen.ua)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen.id)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://example.com/next?a=1", w.Header().Get("Location"))
}

func TestWrap(t *testing.T) {
	var logs bytes.Buffer
	opts := config.NewOptions([]config.Option{{F: func(o *config.Options) {
		o.DisablePrintRoute = true
		o.Compress = true
		o.AccessLog = true
		o.AccessLogOutput = &logs
		o.CORSOrigins = []string{"https://app.example.com"}
	}}})
	engine := route.NewEngine(opts)
	engine.GET("/ping", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text(strings.Repeat("pong", 64))
		return nil
	})
	h := Wrap(NewHandler(engine, opts.MaxRequestBodySize), opts)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(h, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, logs.String(), `"GET /ping HTTP/1.1" 200`)
}

func TestWrapRecoversWriterPanic(t *testing.T) {
	opts := config.NewOptions(nil)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), opts)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
