package app

import (
	"context"
	"reflect"
	"sync"

	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/utils"
)

// HandlerFunc 是中间件与请求处理器的函数签名。
//
// 返回的错误或发生的恐慌由分发引擎统一兜底：记录日志，必要时置 500 并分诊。
type HandlerFunc func(ctx context.Context, ex *Exchange) error

// PanicHandler 处理链发生恐慌时由引擎调用，可借此记录现场并中止交换。
type PanicHandler func(ctx context.Context, ex *Exchange, err any)

// TraceMode 决定分发引擎是否为处理器包裹跨度。
type TraceMode uint8

const (
	// Untraced 由引擎包裹一个以处理器名称命名的跨度。
	Untraced TraceMode = iota
	// Traced 处理器自行管理跨度，引擎直接调用。
	Traced
)

func (m TraceMode) String() string {
	if m == Traced {
		return "traced"
	}
	return "untraced"
}

// Handler 注册时确定的处理器记录。
type Handler struct {
	Name string
	Func HandlerFunc
	Mode TraceMode
}

// NewHandler 创建由引擎包裹跨度的处理器。
func NewHandler(name string, fn HandlerFunc) Handler {
	return Handler{Name: name, Func: fn, Mode: Untraced}
}

// TracedHandler 创建自行管理跨度的处理器。
func TracedHandler(name string, fn HandlerFunc) Handler {
	return Handler{Name: name, Func: fn, Mode: Traced}
}

// HandlerOf 以注册名或函数名作为名称创建处理器。
func HandlerOf(fn HandlerFunc) Handler {
	return NewHandler(HandlerName(fn), fn)
}

// Invoke 按追踪模式调用处理器。
func (h Handler) Invoke(ctx context.Context, ex *Exchange) error {
	if h.Mode == Traced {
		return h.Func(ctx, ex)
	}
	return ex.Logger().Span(h.Name, func(*tracer.Span) error {
		return h.Func(ctx, ex)
	})
}

// HandlersChain 是一组处理器记录。
type HandlersChain []Handler

// Last 获取处理链的最后一个处理器（主处理器）。
func (c HandlersChain) Last() (Handler, bool) {
	if length := len(c); length > 0 {
		return c[length-1], true
	}
	return Handler{}, false
}

// Names 返回处理链中各处理器的名称。
func (c HandlersChain) Names() []string {
	names := make([]string, len(c))
	for i, h := range c {
		names[i] = h.Name
	}
	return names
}

var (
	handlerNamesMu sync.RWMutex
	handlerNames   = make(map[uintptr]string)
)

// SetHandlerName 为处理器函数登记名称，HandlerOf 优先使用登记的名称。
func SetHandlerName(handler HandlerFunc, name string) {
	handlerNamesMu.Lock()
	handlerNames[getFuncAddr(handler)] = name
	handlerNamesMu.Unlock()
}

// GetHandlerName 获取登记的处理器名称。
func GetHandlerName(handler HandlerFunc) string {
	handlerNamesMu.RLock()
	defer handlerNamesMu.RUnlock()
	return handlerNames[getFuncAddr(handler)]
}

// HandlerName 返回登记的名称，未登记时返回去掉包路径的函数名。
func HandlerName(handler HandlerFunc) string {
	if name := GetHandlerName(handler); name != "" {
		return name
	}
	return utils.ShortNameOfFunction(handler)
}

// getFuncAddr 取函数值本身的地址，同一字面量生成的不同闭包互不冲突。
func getFuncAddr(v any) uintptr {
	return reflect.ValueOf(reflect.ValueOf(v)).Field(1).Pointer()
}
