package main

import (
	"context"
	"net/http"
	"time"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/app/middlewares/server/basic_auth"
	"github.com/favbox/windx/app/server"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/protocol/consts"
)

// newDemo 创建演示应用。
func newDemo(opts ...config.Option) *server.Wind {
	w := server.Default(opts...)

	w.GET("/ping", ping)
	w.Health("/healthz")

	v1 := w.Group("/api/v1")
	v1.GET("/users/:id", getUser).WithMeta("team", "accounts")
	v1.POST("/echo", echo).WithBodyParser(app.BodyParserConfig{
		Limit:        1 << 20,
		AllowedTypes: []string{consts.MIMEJSON, consts.MIMEPOSTForm, consts.MIMEPlain},
	})
	v1.GET("/slow", slow).WithTimeout(100 * time.Millisecond)

	admin := w.Group("/admin", basic_auth.BasicAuth(basic_auth.Accounts{"admin": "windx"}))
	admin.GET("/whoami", whoami)

	w.NotFound("/", notFound)
	w.OnError("/", renderError)
	return w
}

func ping(_ context.Context, ex *app.Exchange) error {
	ex.Text("pong")
	return nil
}

func getUser(_ context.Context, ex *app.Exchange) error {
	id, _ := ex.Get("id")
	user, err := tracer.SpanValue(ex.Logger(), "load-user", func(span *tracer.Span) (map[string]any, error) {
		span.SetAttribute("user.id", id)
		return map[string]any{"id": id, "name": "用户" + id.(string)}, nil
	})
	if err != nil {
		return err
	}
	ex.JSON(user)
	return nil
}

func echo(_ context.Context, ex *app.Exchange) error {
	ex.JSON(map[string]any{"body": ex.Body()})
	return nil
}

func slow(ctx context.Context, ex *app.Exchange) error {
	select {
	case <-ctx.Done():
		ex.Logger().Warn("请求已中止", context.Cause(ctx).Error())
	case <-time.After(time.Second):
		ex.Text("done")
	}
	return nil
}

func whoami(_ context.Context, ex *app.Exchange) error {
	user, _ := ex.Get("user")
	ex.JSON(map[string]any{"user": user})
	return nil
}

func notFound(_ context.Context, ex *app.Exchange) error {
	ex.JSON(map[string]any{"error": "not found", "path": ex.Path()}, app.WithStatus(consts.StatusNotFound))
	return nil
}

func renderError(_ context.Context, ex *app.Exchange) error {
	status := ex.StatusCode()
	ex.JSON(map[string]any{"error": http.StatusText(status)}, app.WithStatus(status))
	return nil
}
