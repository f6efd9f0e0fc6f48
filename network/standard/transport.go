package standard

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/favbox/windx/common/config"
	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/network"
)

type transport struct {
	network      string
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	lock sync.Mutex
	ln   net.Listener
	srv  *http.Server
}

func (t *transport) ListenAndServe(handler http.Handler) (err error) {
	_ = network.UnlinkUdsFile(t.network, t.addr)

	t.lock.Lock()
	t.ln, err = net.Listen(t.network, t.addr)
	if err != nil {
		t.lock.Unlock()
		return err
	}
	t.srv = &http.Server{
		Handler:      handler,
		ReadTimeout:  t.readTimeout,
		WriteTimeout: t.writeTimeout,
		IdleTimeout:  t.idleTimeout,
		ErrorLog:     hlog.NewStdLogger(hlog.LevelWarn),
	}
	ln, srv := t.ln, t.srv
	t.lock.Unlock()

	hlog.SystemLogger().Infof("HTTP服务器监听地址=%s", ln.Addr().String())
	if err = srv.Serve(ln); stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *transport) Addr() net.Addr {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

func (t *transport) Close() error {
	t.lock.Lock()
	srv := t.srv
	t.lock.Unlock()
	if srv == nil {
		return errors.ErrServerNotServing
	}
	defer network.UnlinkUdsFile(t.network, t.addr)
	return srv.Close()
}

func (t *transport) Shutdown(ctx context.Context) error {
	t.lock.Lock()
	srv := t.srv
	t.lock.Unlock()
	if srv == nil {
		return errors.ErrServerNotServing
	}
	defer network.UnlinkUdsFile(t.network, t.addr)
	return srv.Shutdown(ctx)
}

// NewTransporter 创建标准库网络传输器。
func NewTransporter(options *config.Options) network.Transporter {
	return &transport{
		network:      options.Network,
		addr:         options.Addr,
		readTimeout:  options.ReadTimeout,
		writeTimeout: options.WriteTimeout,
		idleTimeout:  options.IdleTimeout,
	}
}
