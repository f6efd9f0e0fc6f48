package recovery

import (
	"context"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/hlog"
	"github.com/favbox/windx/protocol/consts"
)

// 恐慌恢复的配置项。
type options struct {
	recoveryHandler func(ctx context.Context, ex *app.Exchange, err any, stack []byte)
}

// Option 自定义选项的应用函数。
type Option func(o *options)

func defaultRecoveryHandler(ctx context.Context, ex *app.Exchange, err any, stack []byte) {
	hlog.SystemLogger().CtxErrorf(ctx, "[恐慌恢复] 恐慌=%v\n堆栈=%s", err, stack)
	_ = ex.SetStatus(consts.StatusInternalServerError)
}

func newOptions(opts ...Option) *options {
	cfg := &options{recoveryHandler: defaultRecoveryHandler}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithRecoveryHandler 自定义恐慌恢复处理器。
//
// 处理器未锁定交换体时，引擎按当前状态码（低于 400 时为 500）继续分诊。
func WithRecoveryHandler(f func(ctx context.Context, ex *app.Exchange, err any, stack []byte)) Option {
	return func(o *options) {
		o.recoveryHandler = f
	}
}
