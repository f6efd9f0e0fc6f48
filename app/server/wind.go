package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/favbox/windx/app/middlewares/server/recovery"
	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/network"
	"github.com/favbox/windx/network/standard"
	"github.com/favbox/windx/route"
)

const (
	statusInitialized uint32 = iota
	statusRunning
	statusShutdown
	statusClosed
)

var (
	errAlreadyRunning   = errors.NewPrivate("服务器已在运行中")
	errStatusNotRunning = errors.NewPrivate("服务器未在运行中")
)

// CtxCallback 引擎关闭时执行的钩子。
type CtxCallback func(ctx context.Context)

// CtxErrCallback 引擎启动时执行的钩子，返回错误则终止启动。
type CtxErrCallback func(ctx context.Context) error

// New 创建一个无默认中间件的 wind 实例。
func New(opts ...config.Option) *Wind {
	options := config.NewOptions(opts)
	newTransporter := options.TransporterNewer
	if newTransporter == nil {
		newTransporter = standard.NewTransporter
	}
	return &Wind{
		Engine:    route.NewEngine(options),
		transport: newTransporter(options),
	}
}

// Default 创建默认带有恐慌恢复的 wind 实例。
func Default(opts ...config.Option) *Wind {
	w := New(opts...)
	w.OnPanic(recovery.Recovery())

	return w
}

// Wind 是 wind 的核心结构。
//
// 组合了分发引擎 route.Engine、传输器和优雅退出函数。
type Wind struct {
	*route.Engine

	// OnRun 是服务器启动时，依次触发的一组钩子函数。
	OnRun []CtxErrCallback

	// OnShutdown 是服务器关闭时，并行触发的一组钩子函数。
	OnShutdown []CtxCallback

	transport network.Transporter
	status    uint32

	handlerOnce sync.Once
	handler     http.Handler

	// 用于接收信息实现优雅退出
	signalWaiter func(err chan error) error
}

// Handler 返回带有外层中间件的 http.Handler，可直接挂到任意 net/http 服务器上。
func (w *Wind) Handler() http.Handler {
	w.handlerOnce.Do(func() {
		opts := w.GetOptions()
		w.handler = standard.Wrap(standard.NewHandler(w.Engine, opts.MaxRequestBodySize), opts)
	})
	return w.handler
}

// Addr 返回实际监听的地址，尚未监听时返回 nil。
func (w *Wind) Addr() net.Addr {
	return w.transport.Addr()
}

// Run 触发启动钩子并由传输器监听请求，直至传输器被关闭。
func (w *Wind) Run() error {
	if !atomic.CompareAndSwapUint32(&w.status, statusInitialized, statusRunning) {
		return errAlreadyRunning
	}
	defer atomic.StoreUint32(&w.status, statusClosed)

	ctx := context.Background()
	for i := range w.OnRun {
		if err := w.OnRun[i](ctx); err != nil {
			return err
		}
	}

	return w.transport.ListenAndServe(w.Handler())
}

// Spin 运行服务器直至捕获 os.Signal 或 w.Run 返回错误。
// 支持优雅退出。
func (w *Wind) Spin() {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run()
	}()

	signalWaiter := defaultSignalWaiter
	if w.signalWaiter != nil {
		signalWaiter = w.signalWaiter
	}

	if err := signalWaiter(errCh); err != nil {
		hlog.SystemLogger().Errorf("收到退出信号：错误=%v", err)
		if err = w.Close(); err != nil {
			hlog.SystemLogger().Errorf("退出错误：%v", err)
		}
		return
	}

	hlog.SystemLogger().Infof("开始优雅退出，最多等待 %d 秒...", w.GetOptions().ExitWaitTimeout/time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), w.GetOptions().ExitWaitTimeout)
	defer cancel()

	if err := w.Shutdown(ctx); err != nil {
		hlog.SystemLogger().Errorf("退出错误：%v", err)
	}
}

// Shutdown 优雅退出服务器，步骤如下：
//
//  1. 并行触发 OnShutdown 钩子函数，直至完成或超时；
//  2. 关闭监听器并等待在途请求完成；
//  3. 刷新全部日志与跨度导出器。
func (w *Wind) Shutdown(ctx context.Context) (err error) {
	if !atomic.CompareAndSwapUint32(&w.status, statusRunning, statusShutdown) {
		return errStatusNotRunning
	}

	ch := make(chan struct{})
	go w.executeOnShutdownHooks(ctx, ch)
	defer func() {
		// 确保钩子执行完成或超时
		select {
		case <-ctx.Done():
			hlog.SystemLogger().Infof("执行 OnShutdownHooks 超时：错误=%v", ctx.Err())
		case <-ch:
			hlog.SystemLogger().Info("执行 OnShutdownHooks 完成")
		}
		if ferr := w.Flush(ctx); ferr != nil {
			hlog.SystemLogger().Errorf("刷新导出器出错：%v", ferr)
		}
	}()

	if err = w.transport.Shutdown(ctx); err != nil && err != ctx.Err() {
		return err
	}
	return nil
}

// Close 立即关闭传输器并刷新导出器，不等待在途请求。
func (w *Wind) Close() error {
	err := w.transport.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if ferr := w.Flush(ctx); ferr != nil {
		hlog.SystemLogger().Errorf("刷新导出器出错：%v", ferr)
	}
	return err
}

// SetCustomSignalWaiter 设置自定义的信号等待者。
// 若默认的信号等待实现不符要求，则可以自定义。
// Wind 在 f 返回错误后会立即退出，否则它将优雅退出。
func (w *Wind) SetCustomSignalWaiter(f func(err chan error) error) {
	w.signalWaiter = f
}

// 并行执行关闭钩子。
func (w *Wind) executeOnShutdownHooks(ctx context.Context, ch chan struct{}) {
	wg := sync.WaitGroup{}
	for i := range w.OnShutdown {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			w.OnShutdown[index](ctx)
		}(i)
	}
	wg.Wait()
	close(ch)
}

// 信号等待者的默认实现。
// SIGTERM 立即退出。
// SIGHUP|SIGINT 触发优雅退出。
func defaultSignalWaiter(errCh chan error) error {
	signalToNotify := []os.Signal{
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGTERM,
	}
	if signal.Ignored(syscall.SIGHUP) {
		signalToNotify = []os.Signal{
			syscall.SIGINT,
			syscall.SIGTERM,
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, signalToNotify...)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		switch sig {
		case syscall.SIGTERM:
			// 强制退出
			return errors.NewPublic(sig.String())
		case syscall.SIGHUP, syscall.SIGINT:
			hlog.SystemLogger().Infof("收到退出信号：%s", sig)
			// 优雅退出
			return nil
		}
	case err := <-errCh:
		// 出现错误，立即退出
		return err
	}

	return nil
}
