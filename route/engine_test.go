package route

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/exporter/memory"
	"github.com/favbox/windx/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...config.Option) (*Engine, *memory.Exporter) {
	t.Helper()
	mem := memory.New()
	opts = append([]config.Option{{F: func(o *config.Options) {
		o.DisablePrintRoute = true
		o.ExporterInit = func() ([]tracer.Exporter, error) {
			return []tracer.Exporter{mem}, nil
		}
	}}}, opts...)
	return NewEngine(config.NewOptions(opts)), mem
}

func perform(e *Engine, method, target string, adapter app.Adapter) *app.Exchange {
	path, query, _ := strings.Cut(target, "?")
	ex := e.NewExchange(context.Background(), app.Request{
		Method:   method,
		Path:     path,
		RawQuery: query,
		Host:     "https://example.com",
		Headers:  map[string]string{"user-agent": "test"},
	}, adapter)
	e.OnIncoming(ex)
	return ex
}

func body(ex *app.Exchange) string {
	if b := ex.ResponseBody(); b != nil {
		return *b
	}
	return ""
}

type stubAdapter struct {
	body any
	err  error
}

func (s stubAdapter) LoadBody(context.Context, *app.BodyParserConfig) (any, error) {
	return s.body, s.err
}

func (stubAdapter) Stream(string) (io.ReadCloser, int64, error) { return nil, 0, io.EOF }

func (stubAdapter) ClientIP() string { return "10.0.0.1" }

func (stubAdapter) Defer(fn func()) { fn() }

func TestDispatchMatchedRoute(t *testing.T) {
	e, mem := newTestEngine(t)
	e.GET("/users/:id", func(ctx context.Context, ex *app.Exchange) error {
		id, _ := ex.Get("id")
		ex.JSON(map[string]any{"id": id})
		return nil
	}).WithMeta("team", "accounts")

	ex := perform(e, "GET", "/users/42?verbose=1", nil)

	assert.True(t, ex.IsDone())
	assert.Equal(t, consts.StatusOK, ex.StatusCode())
	assert.Equal(t, `{"id":"42"}`, body(ex))
	assert.Equal(t, "GET /users/:id", ex.Route().Name)

	span, ok := mem.SpanByName("GET /users/:id")
	require.True(t, ok)
	assert.Equal(t, ex.TraceID(), span.TraceID)
	assert.Equal(t, "/users/:id", span.Attributes[tracer.AttrHTTPRoute])
	assert.Equal(t, "GET", span.Attributes[tracer.AttrHTTPMethod])
	assert.Equal(t, "/users/42?verbose=1", span.Attributes[tracer.AttrHTTPTarget])
	assert.Equal(t, "test", span.Attributes[tracer.AttrUserAgent])
	assert.Equal(t, "https://example.com", span.Attributes[tracer.AttrHTTPHost])
	assert.Equal(t, string(KindStd), span.Attributes[tracer.AttrRouteKind])
	assert.Equal(t, "accounts", span.Attributes["wind.route.meta.team"])
	assert.Equal(t, 1, mem.FlushCount())
}

func TestDispatchBareNotFound(t *testing.T) {
	e, mem := newTestEngine(t)
	e.GET("/users", noop)

	ex := perform(e, "GET", "/nothing", nil)
	assert.True(t, ex.IsDone())
	assert.Equal(t, consts.StatusNotFound, ex.StatusCode())
	assert.Nil(t, ex.ResponseBody())
	assert.Empty(t, mem.Spans())
	assert.Equal(t, 1, mem.FlushCount())
}

func TestDispatchNotFoundRoute(t *testing.T) {
	e, mem := newTestEngine(t)
	called := 0
	e.Use(func(ctx context.Context, ex *app.Exchange) error {
		called++
		return nil
	})
	e.NotFound("/", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("root missing")
		return nil
	})
	e.NotFound("/api", func(ctx context.Context, ex *app.Exchange) error {
		assert.Equal(t, consts.StatusNotFound, ex.StatusCode())
		ex.JSON(map[string]string{"error": "not found"})
		return nil
	})

	ex := perform(e, "GET", "/api/v1/users", nil)
	assert.Equal(t, consts.StatusNotFound, ex.StatusCode())
	assert.Equal(t, `{"error":"not found"}`, body(ex))
	_, ok := mem.SpanByName("notfound /api")
	assert.True(t, ok)
	assert.Zero(t, called)

	ex = perform(e, "GET", "/about", nil)
	assert.Equal(t, consts.StatusNotFound, ex.StatusCode())
	assert.Equal(t, "root missing", body(ex))
}

func TestDispatchFallbackMiddleware(t *testing.T) {
	e, _ := newTestEngine(t)
	tag := func(ctx context.Context, ex *app.Exchange) error {
		ex.SetHeader("x-mw", "admin")
		return nil
	}
	admin := e.Group("/admin", tag)
	admin.NotFound("/", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("nf")
		return nil
	})
	admin.OnError("/", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("err")
		return nil
	})
	admin.GET("/boom", func(ctx context.Context, ex *app.Exchange) error {
		return ex.SetStatus(consts.StatusBadGateway)
	})

	ex := perform(e, "GET", "/admin/missing", nil)
	assert.Equal(t, consts.StatusNotFound, ex.StatusCode())
	assert.Equal(t, "nf", body(ex))
	assert.Equal(t, "admin", ex.ResponseHeader("x-mw"))

	ex = perform(e, "GET", "/admin/boom", nil)
	assert.Equal(t, consts.StatusBadGateway, ex.StatusCode())
	assert.Equal(t, "err", body(ex))
	assert.Equal(t, "admin", ex.ResponseHeader("x-mw"))
}

func TestDispatchFallbackMiddlewareRejects(t *testing.T) {
	e, _ := newTestEngine(t)
	handled := false
	deny := func(ctx context.Context, ex *app.Exchange) error {
		return ex.SetStatus(consts.StatusUnauthorized)
	}
	e.Group("/private", deny).NotFound("/", func(ctx context.Context, ex *app.Exchange) error {
		handled = true
		return nil
	})

	ex := perform(e, "GET", "/private/x", nil)
	assert.True(t, ex.IsDone())
	assert.Equal(t, consts.StatusUnauthorized, ex.StatusCode())
	assert.False(t, handled)
}

func TestDispatchTriage(t *testing.T) {
	e, _ := newTestEngine(t)
	e.OnError("/", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("error " + consts.StatusMessage(ex.StatusCode()))
		return nil
	})
	e.OnError("/quiet", noop)

	handlerCalled := false
	deny := func(ctx context.Context, ex *app.Exchange) error {
		return ex.SetStatus(consts.StatusForbidden)
	}
	e.GET("/admin", deny, func(ctx context.Context, ex *app.Exchange) error {
		handlerCalled = true
		return nil
	})
	e.GET("/forgot", func(ctx context.Context, ex *app.Exchange) error {
		ex.SetHeader("x-id", "1")
		return nil
	})
	e.GET("/quiet/fail", func(ctx context.Context, ex *app.Exchange) error {
		return ex.SetStatus(consts.StatusBadGateway)
	})
	e.GET("/redirect", func(ctx context.Context, ex *app.Exchange) error {
		ex.SetHeader("location", "/elsewhere")
		return ex.SetStatus(consts.StatusFound)
	})

	t.Run("middleware status goes to error handler", func(t *testing.T) {
		ex := perform(e, "GET", "/admin", nil)
		assert.False(t, handlerCalled)
		assert.Equal(t, consts.StatusForbidden, ex.StatusCode())
		assert.Equal(t, "error Forbidden", body(ex))
		assert.True(t, ex.IsDone())
	})

	t.Run("forgotten end", func(t *testing.T) {
		ex := perform(e, "GET", "/forgot", nil)
		assert.True(t, ex.IsDone())
		assert.Equal(t, consts.StatusOK, ex.StatusCode())
		assert.Equal(t, "1", ex.ResponseHeader("x-id"))
	})

	t.Run("error handler that does not respond", func(t *testing.T) {
		ex := perform(e, "GET", "/quiet/fail", nil)
		assert.True(t, ex.IsDone())
		assert.Equal(t, consts.StatusBadGateway, ex.StatusCode())
		assert.Nil(t, ex.ResponseBody())
	})

	t.Run("redirect status ends", func(t *testing.T) {
		ex := perform(e, "GET", "/redirect", nil)
		assert.True(t, ex.IsDone())
		assert.Equal(t, consts.StatusFound, ex.StatusCode())
	})
}

func TestDispatchChainErrors(t *testing.T) {
	e, mem := newTestEngine(t)
	var errorHandlerStatus int
	e.OnError("/", func(ctx context.Context, ex *app.Exchange) error {
		errorHandlerStatus = ex.StatusCode()
		return nil
	})
	e.GET("/error", func(ctx context.Context, ex *app.Exchange) error {
		return stderrors.New("数据库不可用")
	})
	e.GET("/panic", func(ctx context.Context, ex *app.Exchange) error {
		panic("boom")
	})
	e.GET("/teapot", func(ctx context.Context, ex *app.Exchange) error {
		_ = ex.SetStatus(consts.StatusTeapot)
		return stderrors.New("保留已有的错误状态")
	})
	e.GET("/sent", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("ok")
		return stderrors.New("已响应后的错误")
	})

	tests := []struct {
		path          string
		status        int
		handlerStatus int
	}{
		{"/error", consts.StatusInternalServerError, consts.StatusInternalServerError},
		{"/panic", consts.StatusInternalServerError, consts.StatusInternalServerError},
		{"/teapot", consts.StatusTeapot, consts.StatusTeapot},
		{"/sent", consts.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			errorHandlerStatus = 0
			mem.Reset()

			ex := perform(e, "GET", tt.path, nil)
			assert.True(t, ex.IsLocked())
			assert.Equal(t, tt.status, ex.StatusCode())
			assert.Equal(t, tt.handlerStatus, errorHandlerStatus)

			chain := ex.Errors().ByType(errors.ErrorTypeChain)
			require.Len(t, chain, 1)
			assert.Equal(t, "GET "+tt.path, chain[0].Meta.(map[string]any)["route"])
			assert.NotEmpty(t, mem.LogsAt(tracer.LevelError))
			assert.Equal(t, 1, mem.FlushCount())
		})
	}
}

func TestDispatchMiddlewareOrderAndSpans(t *testing.T) {
	e, mem := newTestEngine(t)
	var order []string
	step := func(name string) app.HandlerFunc {
		fn := func(ctx context.Context, ex *app.Exchange) error {
			order = append(order, name)
			return nil
		}
		app.SetHandlerName(fn, name)
		return fn
	}

	e.Use(step("global"))
	api := e.Group("/api", step("group"))
	api.UseHandler(app.TracedHandler("traced", func(ctx context.Context, ex *app.Exchange) error {
		order = append(order, "traced")
		return nil
	}))
	api.GET("/items", step("route"), step("handler"))
	api.GET("/stop", func(ctx context.Context, ex *app.Exchange) error {
		order = append(order, "stopper")
		ex.Status(consts.StatusNoContent)
		return nil
	}, step("never"))

	ex := perform(e, "GET", "/api/items", nil)
	assert.Equal(t, []string{"global", "group", "traced", "route", "handler"}, order)
	assert.True(t, ex.IsDone())

	for _, name := range []string{"global", "group", "route", "GET /api/items"} {
		_, ok := mem.SpanByName(name)
		assert.True(t, ok, name)
	}
	_, ok := mem.SpanByName("traced")
	assert.False(t, ok)
	_, ok = mem.SpanByName("handler")
	assert.False(t, ok, "主处理器的跨度以路由命名")

	order = nil
	ex = perform(e, "GET", "/api/stop", nil)
	assert.Equal(t, []string{"global", "group", "traced", "stopper"}, order)
	assert.Equal(t, consts.StatusNoContent, ex.StatusCode())
}

func TestDispatchTimeouts(t *testing.T) {
	t.Run("default timeout aborts", func(t *testing.T) {
		e, _ := newTestEngine(t, config.Option{F: func(o *config.Options) {
			o.DefaultTimeout = 20 * time.Millisecond
		}})
		e.GET("/slow", func(ctx context.Context, ex *app.Exchange) error {
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			ex.Text("late")
			return nil
		})

		ex := perform(e, "GET", "/slow", nil)
		assert.True(t, ex.IsAborted())
		assert.Equal(t, consts.StatusRequestTimeout, ex.StatusCode())
		assert.Nil(t, ex.ResponseBody())
		assert.ErrorIs(t, context.Cause(ex.Context()), errors.ErrTimeout)
	})

	t.Run("route timeout overrides default", func(t *testing.T) {
		e, _ := newTestEngine(t)
		var hasTimeout bool
		e.GET("/fast", func(ctx context.Context, ex *app.Exchange) error {
			hasTimeout = ex.HasTimeout()
			ex.Text("ok")
			return nil
		}).WithTimeout(time.Minute)

		ex := perform(e, "GET", "/fast", nil)
		assert.True(t, hasTimeout)
		assert.False(t, ex.HasTimeout())
	})

	t.Run("no default timeout", func(t *testing.T) {
		e, _ := newTestEngine(t, config.Option{F: func(o *config.Options) {
			o.DefaultTimeout = 0
		}})
		var hasTimeout bool
		e.GET("/none", func(ctx context.Context, ex *app.Exchange) error {
			hasTimeout = ex.HasTimeout()
			return nil
		})
		perform(e, "GET", "/none", nil)
		assert.False(t, hasTimeout)
	})
}

func TestDispatchInitFailure(t *testing.T) {
	e, _ := newTestEngine(t)
	handlerCalled := false
	e.OnError("/", func(ctx context.Context, ex *app.Exchange) error {
		ex.Text("rejected")
		return nil
	})
	e.POST("/upload", func(ctx context.Context, ex *app.Exchange) error {
		handlerCalled = true
		return nil
	})

	ex := perform(e, "POST", "/upload", stubAdapter{err: errors.ErrBodyTooLarge})
	assert.False(t, handlerCalled)
	assert.Equal(t, consts.StatusRequestEntityTooLarge, ex.StatusCode())
	assert.Equal(t, "rejected", body(ex))

	ex = perform(e, "POST", "/upload", stubAdapter{body: "payload"})
	assert.True(t, handlerCalled)
	assert.Equal(t, "payload", ex.Body())
	assert.Equal(t, "10.0.0.1", ex.ClientIP())
}

func TestDispatchAfterHooksAndFlush(t *testing.T) {
	e, mem := newTestEngine(t)
	var calls []string
	e.GET("/", func(ctx context.Context, ex *app.Exchange) error {
		ex.AddAfter(func(ctx context.Context) error {
			assert.NoError(t, ctx.Err())
			assert.True(t, ex.IsDone())
			calls = append(calls, "hook")
			return nil
		})
		ex.Text("hi")
		return nil
	})

	ex := perform(e, "GET", "/", nil)
	ex.RunAfter()
	assert.Equal(t, []string{"hook"}, calls)
	assert.Equal(t, 1, mem.FlushCount())
	assert.ErrorIs(t, ex.Context().Err(), context.Canceled)
}

func TestDispatchAutoOptionsAndHealth(t *testing.T) {
	e, _ := newTestEngine(t)
	e.GET("/items/:id", noop)
	e.DELETE("/items/:id", noop)
	e.Health("/healthz")

	ex := perform(e, "OPTIONS", "/items/1", nil)
	assert.Equal(t, consts.StatusNoContent, ex.StatusCode())
	assert.Equal(t, "DELETE, GET, OPTIONS", ex.ResponseHeader("allow"))

	ex = perform(e, "GET", "/healthz", nil)
	assert.Equal(t, consts.StatusOK, ex.StatusCode())
	assert.Equal(t, `{"status":"ok"}`, body(ex))
	assert.Equal(t, "no-store", ex.ResponseHeader("cache-control"))
}

type recordingTracer struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTracer) Start(ctx context.Context, ex *app.Exchange) context.Context {
	r.mu.Lock()
	r.events = append(r.events, "start "+ex.Path())
	r.mu.Unlock()
	return ctx
}

func (r *recordingTracer) Finish(ctx context.Context, ex *app.Exchange) {
	r.mu.Lock()
	r.events = append(r.events, "finish "+consts.StatusMessage(ex.StatusCode()))
	r.mu.Unlock()
}

type staticRouter struct {
	route *Route
}

func (s staticRouter) Match(method, path string) (*Match, bool) {
	if method == s.route.Method && path == s.route.Path {
		return &Match{Route: s.route}, true
	}
	return nil, false
}

func (staticRouter) MatchNotFound(string) (*Route, bool) { return nil, false }

func (staticRouter) MatchError(string) (*Route, bool) { return nil, false }

func TestCustomRouterAndTracers(t *testing.T) {
	rt := &recordingTracer{}
	custom := staticRouter{route: &Route{
		Name:    "ping",
		Method:  "GET",
		Path:    "/ping",
		Kind:    KindStd,
		Handler: app.NewHandler("ping", func(ctx context.Context, ex *app.Exchange) error {
			ex.Text("pong")
			return nil
		}),
	}}
	e, _ := newTestEngine(t, config.Option{F: func(o *config.Options) {
		o.Router = custom
		o.Tracers = []any{rt, "ignored"}
	}})

	assert.Nil(t, e.RouterGroup)
	assert.Nil(t, e.Routes())
	assert.Equal(t, custom, e.Router())

	ex := perform(e, "GET", "/ping", nil)
	assert.Equal(t, "pong", body(ex))
	perform(e, "GET", "/missing", nil)
	assert.Equal(t, []string{"start /ping", "finish OK", "start /missing", "finish Not Found"}, rt.events)

	assert.Panics(t, func() {
		NewEngine(config.NewOptions([]config.Option{{F: func(o *config.Options) {
			o.Router = "not a router"
		}}}))
	})
}

type panickingTracer struct{}

func (panickingTracer) Start(context.Context, *app.Exchange) context.Context {
	panic("tracer start")
}

func (panickingTracer) Finish(context.Context, *app.Exchange) {}

func TestDispatchPanickingTracer(t *testing.T) {
	e, _ := newTestEngine(t, config.Option{F: func(o *config.Options) {
		o.Tracers = []any{panickingTracer{}}
	}})
	var handlerCtx context.Context
	e.GET("/ok", func(ctx context.Context, ex *app.Exchange) error {
		handlerCtx = ctx
		select {
		case <-ctx.Done():
			ex.Text("cancelled")
		default:
			ex.Text("ok")
		}
		return nil
	})

	ex := perform(e, "GET", "/ok", nil)
	require.NotNil(t, handlerCtx)
	assert.Equal(t, consts.StatusOK, ex.StatusCode())
	assert.Equal(t, "ok", body(ex))
}
