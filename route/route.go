package route

import (
	"maps"
	"regexp"
	"time"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/utils"
	"github.com/favbox/windx/protocol/consts"
)

var upperLetterReg = regexp.MustCompile("^[A-Z]+$")

// Kind 路由的种类。
type Kind string

const (
	KindStd      Kind = "std"      // 普通路由
	KindNotFound Kind = "notfound" // 404 处理路由
	KindError    Kind = "error"    // 错误处理路由
	KindOptions  Kind = "options"  // 自动生成的 OPTIONS 路由
	KindHealth   Kind = "health"   // 健康检查路由
)

// Route 表示一个路由信息，包括请求方法、路径及其处理链。
type Route struct {
	Name       string                // 路由名称，默认为 "方法 路径"
	Method     string                // 请求方法，404 与错误路由为空
	Path       string                // 请求路径，404 与错误路由为路径前缀
	Kind       Kind                  // 路由种类
	Middleware app.HandlersChain     // 路由中间件（含分组中间件）
	Handler    app.Handler           // 主处理器
	Timeout    time.Duration         // 请求截止时长，0 表示使用引擎默认值
	BodyParser *app.BodyParserConfig // 正文解析配置
	Meta       map[string]any        // 附加元数据，会写入请求记录器属性
}

// Named 设置路由名称。
func (r *Route) Named(name string) *Route {
	r.Name = name
	return r
}

// WithTimeout 设置路由的请求截止时长。
func (r *Route) WithTimeout(d time.Duration) *Route {
	r.Timeout = d
	return r
}

// WithBodyParser 设置路由的正文解析配置。
func (r *Route) WithBodyParser(cfg app.BodyParserConfig) *Route {
	r.BodyParser = &cfg
	return r
}

// WithMeta 附加一条元数据。
func (r *Route) WithMeta(key string, value any) *Route {
	if r.Meta == nil {
		r.Meta = make(map[string]any)
	}
	r.Meta[key] = value
	return r
}

// Info 返回交换体初始化所需的路由信息。
func (r *Route) Info(params map[string]string) app.RouteInfo {
	return app.RouteInfo{
		Name:       r.Name,
		Path:       r.Path,
		Kind:       string(r.Kind),
		Params:     maps.Clone(params),
		BodyParser: r.BodyParser,
	}
}

// Routes 定义了一组路由信息。
type Routes []*Route

// RouterGroup 表示一个路由组，由前缀路径和一组处理器（中间件）组成。
type RouterGroup struct {
	Handlers app.HandlersChain
	basePath string
	mux      *Mux
}

// BasePath 获取路由组的基本路径，即这组路由的共同前缀。
func (group *RouterGroup) BasePath() string {
	return group.basePath
}

// Group 创建分组路由。可添加有相同前缀和中间件的路由（如使用同一鉴权中间件的 /admin 路由）。
func (group *RouterGroup) Group(relativePath string, middleware ...app.HandlerFunc) *RouterGroup {
	return &RouterGroup{
		Handlers: group.combineHandlers(handlersOf(middleware)),
		basePath: group.calculateAbsolutePath(relativePath),
		mux:      group.mux,
	}
}

// Use 添加中间件到该分组路由，仅对之后注册的路由生效。
func (group *RouterGroup) Use(middleware ...app.HandlerFunc) *RouterGroup {
	group.Handlers = append(group.Handlers, handlersOf(middleware)...)
	return group
}

// UseHandler 添加中间件记录，可用于自行管理跨度的中间件。
func (group *RouterGroup) UseHandler(middleware ...app.Handler) *RouterGroup {
	group.Handlers = append(group.Handlers, middleware...)
	return group
}

// Handle 路由注册的通用函数，最后一个处理器为主函数，其余为中间件。
func (group *RouterGroup) Handle(httpMethod, relativePath string, handlers ...app.HandlerFunc) *Route {
	if matches := upperLetterReg.MatchString(httpMethod); !matches {
		panic("http 请求方法 `" + httpMethod + "` 无效")
	}
	return group.handle(httpMethod, relativePath, handlersOf(handlers))
}

// Any 注册一条支持所有标准请求方法的路由，返回 GET 路由。
func (group *RouterGroup) Any(relativePath string, handlers ...app.HandlerFunc) *Route {
	r := group.handle(consts.MethodGet, relativePath, handlersOf(handlers))
	for _, method := range []string{
		consts.MethodPost, consts.MethodPut, consts.MethodPatch,
		consts.MethodHead, consts.MethodOptions, consts.MethodDelete,
	} {
		group.handle(method, relativePath, handlersOf(handlers))
	}
	return r
}

// GET 注册一条 GET 路由，是 Handle("GET", relativePath, handlers) 的快捷方式。
func (group *RouterGroup) GET(relativePath string, handlers ...app.HandlerFunc) *Route {
	return group.handle(consts.MethodGet, relativePath, handlersOf(handlers))
}

// POST 注册一条 POST 路由，是 Handle("POST", relativePath, handlers) 的快捷方式。
func (group *RouterGroup) POST(relativePath string, handlers ...app.HandlerFunc) *Route {
	return group.handle(consts.MethodPost, relativePath, handlersOf(handlers))
}

// DELETE 注册一条 DELETE 路由，是 Handle("DELETE", relativePath, handlers) 的快捷方式。
func (group *RouterGroup) DELETE(relativePath string, handlers ...app.HandlerFunc) *Route {
	return group.handle(consts.MethodDelete, relativePath, handlersOf(handlers))
}

// PATCH 注册一条 PATCH 路由，是 Handle("PATCH", relativePath, handlers) 的快捷方式。
func (group *RouterGroup) PATCH(relativePath string, handlers ...app.HandlerFunc) *Route {
	return group.handle(consts.MethodPatch, relativePath, handlersOf(handlers))
}

// PUT 注册一条 PUT 路由，是 Handle("PUT", relativePath, handlers) 的快捷方式。
func (group *RouterGroup) PUT(relativePath string, handlers ...app.HandlerFunc) *Route {
	return group.handle(consts.MethodPut, relativePath, handlersOf(handlers))
}

// OPTIONS 注册一条 OPTIONS 路由，显式注册后不再自动应答该路径的 OPTIONS 请求。
func (group *RouterGroup) OPTIONS(relativePath string, handlers ...app.HandlerFunc) *Route {
	return group.handle(consts.MethodOptions, relativePath, handlersOf(handlers))
}

// HEAD 注册一条 HEAD 路由，是 Handle("HEAD", relativePath, handlers) 的快捷方式。
func (group *RouterGroup) HEAD(relativePath string, handlers ...app.HandlerFunc) *Route {
	return group.handle(consts.MethodHead, relativePath, handlersOf(handlers))
}

// Health 注册健康检查路由，响应 {"status":"ok"}。
func (group *RouterGroup) Health(relativePath string) *Route {
	r := group.handle(consts.MethodGet, relativePath, app.HandlersChain{app.NewHandler("health", healthHandler)})
	r.Kind = KindHealth
	return r
}

// NotFound 为前缀 relativePath 下的路径注册 404 处理器，按最长前缀选择。
func (group *RouterGroup) NotFound(relativePath string, handlers ...app.HandlerFunc) *Route {
	r := group.build("", relativePath, handlersOf(handlers))
	r.Kind = KindNotFound
	r.Name = "notfound " + r.Path
	group.mux.addFallback(r)
	return r
}

// OnError 为前缀 relativePath 下的路径注册错误处理器，按最长前缀选择。
func (group *RouterGroup) OnError(relativePath string, handlers ...app.HandlerFunc) *Route {
	r := group.build("", relativePath, handlersOf(handlers))
	r.Kind = KindError
	r.Name = "error " + r.Path
	group.mux.addFallback(r)
	return r
}

// Add 直接注册一条路由记录，路径会拼接分组前缀，中间件会合并分组中间件。
func (group *RouterGroup) Add(r *Route) *Route {
	if r.Handler.Func == nil {
		panic("至少要对应一个处理器")
	}
	r.Path = group.calculateAbsolutePath(r.Path)
	r.Middleware = group.combineHandlers(r.Middleware)
	if r.Kind == "" {
		r.Kind = KindStd
	}
	if r.Name == "" {
		r.Name = r.Method + " " + r.Path
	}
	group.mux.add(r)
	return r
}

func (group *RouterGroup) handle(httpMethod, relativePath string, handlers app.HandlersChain) *Route {
	r := group.build(httpMethod, relativePath, handlers)
	group.mux.add(r)
	return r
}

func (group *RouterGroup) build(httpMethod, relativePath string, handlers app.HandlersChain) *Route {
	main, ok := handlers.Last()
	if !ok {
		panic("至少要对应一个处理器")
	}
	absolutePath := group.calculateAbsolutePath(relativePath)
	r := &Route{
		Method:     httpMethod,
		Path:       absolutePath,
		Kind:       KindStd,
		Middleware: group.combineHandlers(handlers[:len(handlers)-1]),
		Handler:    main,
	}
	r.Name = httpMethod + " " + absolutePath
	return r
}

func (group *RouterGroup) calculateAbsolutePath(relativePath string) string {
	return utils.JoinPaths(group.basePath, relativePath)
}

// 合并处理链至当前路由组。
func (group *RouterGroup) combineHandlers(handlers app.HandlersChain) app.HandlersChain {
	finalSize := len(group.Handlers) + len(handlers)
	mergedHandlers := make(app.HandlersChain, finalSize)
	copy(mergedHandlers, group.Handlers)
	copy(mergedHandlers[len(group.Handlers):], handlers)
	return mergedHandlers
}

func handlersOf(fns []app.HandlerFunc) app.HandlersChain {
	chain := make(app.HandlersChain, 0, len(fns))
	for _, fn := range fns {
		if fn == nil {
			panic("处理器不能为空")
		}
		chain = append(chain, app.HandlerOf(fn))
	}
	return chain
}
