package config

import (
	"testing"
	"time"

	"github.com/favbox/windx/common/tracer"
	"github.com/favbox/windx/common/tracer/stats"
	"github.com/favbox/windx/protocol/consts"
	"github.com/stretchr/testify/assert"
)

// TestDefaultOptions 使用默认值测试配置项
func TestDefaultOptions(t *testing.T) {
	options := NewOptions([]Option{})

	assert.Equal(t, defaultReadTimeout, options.ReadTimeout)
	assert.Equal(t, defaultReadTimeout, options.IdleTimeout)
	assert.Equal(t, time.Duration(0), options.WriteTimeout)
	assert.Equal(t, defaultNetwork, options.Network)
	assert.Equal(t, defaultAddr, options.Addr)
	assert.Equal(t, defaultBasePath, options.BasePath)
	assert.Equal(t, consts.DefaultExitWaitTimeout, options.ExitWaitTimeout)
	assert.Equal(t, consts.DefaultRouteTimeout, options.DefaultTimeout)
	assert.Equal(t, int64(consts.DefaultMaxRequestBodySize), options.MaxRequestBodySize)
	assert.Equal(t, consts.HeaderXTraceID, options.TraceHeader)
	assert.Equal(t, []any{}, options.Tracers)
	assert.Equal(t, stats.LevelDetailed, options.TraceLevel)
	assert.Nil(t, options.RequestIDHeaders)
	assert.Nil(t, options.IPHeaders)
	assert.Nil(t, options.Router)
	assert.False(t, options.Debug)
	assert.False(t, options.IPHeaderPromotion)
}

// TestApplyCustomOptions 初始化后使用自定义值测试配置项应用函数
func TestApplyCustomOptions(t *testing.T) {
	options := NewOptions([]Option{})
	options.Apply([]Option{
		{F: func(o *Options) {
			o.Network = "unix"
		}},
	})
	assert.Equal(t, "unix", options.Network)
}

func TestGlobalAttrs(t *testing.T) {
	options := NewOptions([]Option{{F: func(o *Options) {
		o.ServiceName = "shop"
		o.ServiceVersion = "1.2.0"
		o.GlobalAttributes = tracer.Attributes{"deployment.environment": "dev"}
	}}})

	attrs := options.GlobalAttrs()
	assert.Equal(t, "shop", attrs[tracer.AttrServiceName])
	assert.Equal(t, "1.2.0", attrs[tracer.AttrServiceVersion])
	assert.Equal(t, "dev", attrs["deployment.environment"])
}
