package route

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/common/utils"
	"github.com/favbox/windx/protocol/consts"
	"github.com/gorilla/mux"
)

// Match 一次路由匹配的结果。
type Match struct {
	Route  *Route
	Params map[string]string
}

// Router 分发引擎依赖的路由器。
type Router interface {
	// Match 按请求方法与路径匹配路由。
	Match(method, path string) (*Match, bool)
	// MatchNotFound 返回负责 path 的 404 处理路由。
	MatchNotFound(path string) (*Route, bool)
	// MatchError 返回负责 path 的错误处理路由。
	MatchError(path string) (*Route, bool)
}

// RouteLister 可列出已注册路由的路由器。
type RouteLister interface {
	Routes() Routes
}

// Mux 基于 gorilla/mux 的默认路由器。
//
// 路径支持 gorilla 的 {name} 与 {name:regexp} 写法，也支持 :name 与 *name 写法。
// 路由按注册顺序匹配；显式注册 OPTIONS 以外的路径会自动应答 OPTIONS 请求。
type Mux struct {
	RouterGroup

	mu         sync.RWMutex
	router     *mux.Router
	paths      *mux.Router
	routes     Routes
	methods    map[string][]string
	registered map[string]bool
	fallbacks  Routes
	onRegister func(r *Route)
}

var _ Router = (*Mux)(nil)

// NewMux 创建基本路径为 basePath 的路由器。
func NewMux(basePath string) *Mux {
	if basePath == "" {
		basePath = "/"
	}
	m := &Mux{
		router:     mux.NewRouter(),
		paths:      mux.NewRouter(),
		methods:    make(map[string][]string),
		registered: make(map[string]bool),
	}
	m.RouterGroup = RouterGroup{basePath: basePath, mux: m}
	return m
}

// OnRegister 设置路由注册时的回调，如打印路由。
func (m *Mux) OnRegister(fn func(r *Route)) {
	m.mu.Lock()
	m.onRegister = fn
	m.mu.Unlock()
}

// routeHandler 将路由记录挂到 gorilla 路由上，匹配后取回，本身不处理请求。
type routeHandler struct {
	route *Route
}

func (routeHandler) ServeHTTP(http.ResponseWriter, *http.Request) {}

func (m *Mux) add(r *Route) {
	if len(r.Path) == 0 {
		panic("路径不能为空")
	}
	utils.Assert(r.Path[0] == '/', "路径必须以 / 开头")
	utils.Assert(r.Method != "", "HTTP 方法不能为空")

	tpl := toTemplate(r.Path)
	key := r.Method + " " + tpl

	m.mu.Lock()
	if m.registered[key] {
		m.mu.Unlock()
		panic("处理器已注册：" + key)
	}
	route := m.router.NewRoute().Path(tpl).Methods(r.Method).Handler(routeHandler{route: r})
	if err := route.GetError(); err != nil {
		m.mu.Unlock()
		panic("无效的路由路径 " + r.Path + "：" + err.Error())
	}
	m.registered[key] = true
	m.routes = append(m.routes, r)

	if _, ok := m.methods[tpl]; !ok {
		m.paths.NewRoute().Path(tpl).Handler(routeHandler{route: m.optionsRoute(r.Path, tpl)})
	}
	m.methods[tpl] = append(m.methods[tpl], r.Method)
	onRegister := m.onRegister
	m.mu.Unlock()

	if onRegister != nil {
		onRegister(r)
	}
}

func (m *Mux) addFallback(r *Route) {
	m.mu.Lock()
	m.fallbacks = append(m.fallbacks, r)
	onRegister := m.onRegister
	m.mu.Unlock()

	if onRegister != nil {
		onRegister(r)
	}
}

// optionsRoute 生成自动应答 OPTIONS 的路由，Allow 在应答时计算。
func (m *Mux) optionsRoute(path, tpl string) *Route {
	return &Route{
		Name:   consts.MethodOptions + " " + path,
		Method: consts.MethodOptions,
		Path:   path,
		Kind:   KindOptions,
		Handler: app.NewHandler("options", func(ctx context.Context, ex *app.Exchange) error {
			ex.SetHeader(consts.HeaderAllow, strings.Join(m.Allowed(tpl), ", "))
			ex.Status(consts.StatusNoContent)
			return nil
		}),
	}
}

// Allowed 返回路径模板已注册的请求方法（含 OPTIONS），按字母排序。
func (m *Mux) Allowed(tpl string) []string {
	m.mu.RLock()
	methods := slices.Clone(m.methods[tpl])
	m.mu.RUnlock()

	if !slices.Contains(methods, consts.MethodOptions) {
		methods = append(methods, consts.MethodOptions)
	}
	slices.Sort(methods)
	return slices.Compact(methods)
}

// Match 按请求方法与路径匹配路由，未显式注册的 OPTIONS 请求返回自动生成的路由。
func (m *Mux) Match(method, path string) (*Match, bool) {
	req := &http.Request{Method: method, URL: &url.URL{Path: path}}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var rm mux.RouteMatch
	if m.router.Match(req, &rm) && rm.MatchErr == nil {
		if h, ok := rm.Handler.(routeHandler); ok {
			return &Match{Route: h.route, Params: rm.Vars}, true
		}
	}
	if method == consts.MethodOptions {
		var pm mux.RouteMatch
		if m.paths.Match(req, &pm) && pm.MatchErr == nil {
			if h, ok := pm.Handler.(routeHandler); ok {
				return &Match{Route: h.route, Params: pm.Vars}, true
			}
		}
	}
	return nil, false
}

// MatchNotFound 按最长前缀返回 404 处理路由。
func (m *Mux) MatchNotFound(path string) (*Route, bool) {
	return m.longestPrefix(KindNotFound, path)
}

// MatchError 按最长前缀返回错误处理路由。
func (m *Mux) MatchError(path string) (*Route, bool) {
	return m.longestPrefix(KindError, path)
}

func (m *Mux) longestPrefix(kind Kind, path string) (*Route, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Route
	for _, r := range m.fallbacks {
		if r.Kind != kind || !utils.HasPathPrefix(path, r.Path) {
			continue
		}
		if best == nil || len(strings.TrimSuffix(r.Path, "/")) > len(strings.TrimSuffix(best.Path, "/")) {
			best = r
		}
	}
	return best, best != nil
}

// Routes 返回已注册的路由，普通路由在前，404 与错误路由在后。
func (m *Mux) Routes() Routes {
	m.mu.RLock()
	defer m.mu.RUnlock()
	routes := make(Routes, 0, len(m.routes)+len(m.fallbacks))
	routes = append(routes, m.routes...)
	return append(routes, m.fallbacks...)
}

// toTemplate 将 :name 与 *name 写法转为 gorilla 的路径模板。
func toTemplate(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		switch {
		case strings.HasPrefix(s, ":") && len(s) > 1:
			segs[i] = "{" + s[1:] + "}"
		case strings.HasPrefix(s, "*"):
			name := s[1:]
			if name == "" {
				name = "wildcard"
			}
			segs[i] = "{" + name + ":.*}"
		}
	}
	return strings.Join(segs, "/")
}

func healthHandler(_ context.Context, ex *app.Exchange) error {
	ex.JSON(map[string]string{"status": "ok"}, app.WithCache("no-store"))
	return nil
}

func debugPrintRoute(r *Route) {
	names := append(r.Middleware.Names(), r.Handler.Name)
	hlog.SystemLogger().Debugf("方法=%-7s 绝对路径=%-25s 种类=%-8s --> 处理器名称=%s (%d 个处理器)",
		r.Method, r.Path, r.Kind, r.Handler.Name, len(names))
}
