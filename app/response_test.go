package app

import (
	"io"
	"testing"

	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHelper(t *testing.T) {
	ex, _ := newTestExchange(t, Request{}, nil)
	ex.Status(consts.StatusNoContent, WithCache("no-cache"))

	assert.True(t, ex.IsDone())
	assert.Equal(t, consts.StatusNoContent, ex.StatusCode())
	assert.Equal(t, "no-cache", ex.ResponseHeader(consts.HeaderCacheControl))
}

func TestStatusHelperInvalidCode(t *testing.T) {
	ex, _ := newTestExchange(t, Request{}, nil)
	ex.Status(1000)

	assert.False(t, ex.IsLocked())
	assert.Equal(t, consts.StatusOK, ex.StatusCode())
	assert.True(t, errors.Is(ex.Errors().Last(), errors.ErrInvalidStatus))
}

func TestJSON(t *testing.T) {
	type user struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name string
		obj  any
		want string
	}{
		{"map", map[string]int{"a": 1}, `{"a":1}`},
		{"slice", []int{1, 2}, `[1,2]`},
		{"struct", user{Name: "wind"}, `{"name":"wind"}`},
		{"pointer", &user{Name: "x"}, `{"name":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExchange(t, Request{}, nil)
			ex.JSON(tt.obj, WithStatus(consts.StatusCreated))

			require.True(t, ex.IsDone())
			assert.Equal(t, consts.StatusCreated, ex.StatusCode())
			assert.Equal(t, consts.MIMEApplicationJSON, ex.ResponseHeader(consts.HeaderContentType))
			assert.JSONEq(t, tt.want, *ex.ResponseBody())
		})
	}
}

func TestJSONRejectsScalars(t *testing.T) {
	for _, obj := range []any{nil, "text", 42, (*struct{})(nil)} {
		ex, _ := newTestExchange(t, Request{}, nil)
		ex.JSON(obj)

		assert.False(t, ex.IsLocked())
		assert.Nil(t, ex.ResponseBody())
		assert.True(t, errors.Is(ex.Errors().Last(), errors.ErrInvalidPayload))
	}
}

func TestJSONMarshalFailureKeepsState(t *testing.T) {
	ex, _ := newTestExchange(t, Request{}, nil)
	ex.JSON(map[string]any{"ch": make(chan int)})

	assert.False(t, ex.IsLocked())
	assert.Empty(t, ex.ResponseHeader(consts.HeaderContentType))
}

func TestHTMLAndText(t *testing.T) {
	ex, _ := newTestExchange(t, Request{}, nil)
	ex.HTML("<p>hi</p>")
	assert.Equal(t, consts.MIMETextHTML, ex.ResponseHeader(consts.HeaderContentType))
	assert.Equal(t, "<p>hi</p>", *ex.ResponseBody())

	ex.Text("again")
	assert.Equal(t, "<p>hi</p>", *ex.ResponseBody())
	assert.True(t, errors.Is(ex.Errors().Last(), errors.ErrLocked))

	ex, _ = newTestExchange(t, Request{}, nil)
	ex.Text("plain", WithContentType("text/csv"))
	assert.Equal(t, "text/csv", ex.ResponseHeader(consts.HeaderContentType))
}

func TestRedirect(t *testing.T) {
	tests := []struct {
		name  string
		host  string
		query string
		to    string
		opts  []ResponseOption
		want  string
		code  int
	}{
		{"absolute", "example.com", "", "https://other.com/a", nil, "https://other.com/a", 303},
		{"root relative", "example.com", "", "/login", nil, "/login", 303},
		{"protocol relative", "example.com", "", "//cdn.com/x", nil, "//cdn.com/x", 303},
		{"relative", "example.com", "", "login", nil, "https://example.com/login", 303},
		{"relative upgrades http", "http://example.com", "", "login", nil, "https://example.com/login", 303},
		{"relative keeps https", "https://example.com/", "", "a/b", nil, "https://example.com/a/b", 303},
		{"merge query", "example.com", "a=1", "/next", nil, "/next?a=1", 303},
		{"merge query with &", "example.com", "a=1", "/next?b=2", nil, "/next?b=2&a=1", 303},
		{"merge query before fragment", "example.com", "a=1", "/next#top", nil, "/next?a=1#top", 303},
		{"merge query with & before fragment", "example.com", "a=1", "/next?b=2#top", nil, "/next?b=2&a=1#top", 303},
		{"without query", "example.com", "a=1", "/next", []ResponseOption{WithoutQuery()}, "/next", 303},
		{"custom status", "example.com", "", "/moved", []ResponseOption{WithStatus(301)}, "/moved", 301},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExchange(t, Request{Host: tt.host, RawQuery: tt.query}, nil)
			ex.Redirect(tt.to, tt.opts...)

			assert.True(t, ex.IsDone())
			assert.Equal(t, tt.code, ex.StatusCode())
			assert.Equal(t, tt.want, ex.ResponseHeader(consts.HeaderLocation))
		})
	}
}

func TestRedirectRejectsNonRedirectStatus(t *testing.T) {
	ex, _ := newTestExchange(t, Request{}, nil)
	ex.Redirect("/x", WithStatus(consts.StatusOK))

	assert.False(t, ex.IsLocked())
	assert.Empty(t, ex.ResponseHeader(consts.HeaderLocation))
	assert.True(t, errors.Is(ex.Errors().Last(), errors.ErrInvalidStatus))
}

func TestRedirectRelativeWithoutHost(t *testing.T) {
	for _, host := range []string{"", "https://", "http:///"} {
		ex, _ := newTestExchange(t, Request{Path: "/old", Host: host}, nil)
		ex.Redirect("new")

		assert.False(t, ex.IsLocked(), host)
		assert.Equal(t, consts.StatusOK, ex.StatusCode(), host)
		assert.Empty(t, ex.ResponseHeader(consts.HeaderLocation), host)
		assert.True(t, errors.Is(ex.Errors().Last(), errors.ErrInvalidPayload), host)
	}

	// 根相对地址无需主机
	ex, _ := newTestExchange(t, Request{Path: "/old"}, nil)
	ex.Redirect("/new")
	assert.True(t, ex.IsDone())
	assert.Equal(t, "/new", ex.ResponseHeader(consts.HeaderLocation))
}

func TestHelpersRejectInvalidHeaders(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ex *Exchange)
	}{
		{"redirect target", func(ex *Exchange) { ex.Redirect("/a\r\nset-cookie: x=1") }},
		{"cache", func(ex *Exchange) { ex.Redirect("/a", WithCache("x\r\ny")) }},
		{"status cache", func(ex *Exchange) { ex.Status(consts.StatusNoContent, WithCache("a\nb")) }},
		{"content type", func(ex *Exchange) { ex.Text("hi", WithContentType("text/plain\r\nx: y")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, _ := newTestExchange(t, Request{Host: "example.com"}, nil)
			tt.fn(ex)

			assert.False(t, ex.IsLocked())
			assert.Equal(t, consts.StatusOK, ex.StatusCode())
			assert.Empty(t, ex.ResponseHeaders())
			assert.Nil(t, ex.ResponseBody())
			assert.True(t, errors.Is(ex.Errors().Last(), errors.ErrInvalidHeader))
		})
	}
}

func TestFile(t *testing.T) {
	adapter := &mockAdapter{files: map[string]string{"static/app.css": "body{}"}}
	ex, _ := newTestExchange(t, Request{}, adapter)
	ex.File("static/app.css", WithDownload(""))

	require.True(t, ex.IsDone())
	assert.Contains(t, ex.ResponseHeader(consts.HeaderContentType), "text/css")
	assert.Equal(t, `attachment; filename=app.css`, ex.ResponseHeader(consts.HeaderContentDisposition))

	stream, size := ex.ResponseStream()
	require.NotNil(t, stream)
	assert.Equal(t, int64(6), size)
	b, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(b))
}

func TestFileNotFound(t *testing.T) {
	adapter := &mockAdapter{files: map[string]string{}}
	ex, _ := newTestExchange(t, Request{}, adapter)
	ex.File("missing.txt")

	assert.False(t, ex.IsLocked())
	assert.Equal(t, consts.StatusNotFound, ex.StatusCode())
}

func TestFileWithoutAdapter(t *testing.T) {
	ex, _ := newTestExchange(t, Request{}, nil)
	ex.File("a.txt")

	assert.False(t, ex.IsLocked())
	assert.True(t, errors.Is(ex.Errors().Last(), errors.ErrNoAdapter))
}
