package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/favbox/windx/protocol/consts"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 WINDX_SERVER_ADDR 对应 server.addr。
const EnvPrefix = "WINDX"

// File 配置文件与环境变量中可声明的配置。
type File struct {
	Server   ServerFile   `mapstructure:"server"`
	Request  RequestFile  `mapstructure:"request"`
	Service  ServiceFile  `mapstructure:"service"`
	Log      LogFile      `mapstructure:"log"`
	Exporter ExporterFile `mapstructure:"exporter"`
}

// ServerFile 监听与外层中间件配置。
type ServerFile struct {
	Addr               string        `mapstructure:"addr"`
	Network            string        `mapstructure:"network"`
	BasePath           string        `mapstructure:"base_path"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ExitWaitTimeout    time.Duration `mapstructure:"exit_wait_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	Compress           bool          `mapstructure:"compress"`
	AccessLog          bool          `mapstructure:"access_log"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`
}

// RequestFile 单次请求相关配置，空列表表示使用默认值。
type RequestFile struct {
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
	IDHeaders         []string      `mapstructure:"id_headers"`
	TraceHeader       string        `mapstructure:"trace_header"`
	IPHeaders         []string      `mapstructure:"ip_headers"`
	IPHeaderPromotion bool          `mapstructure:"ip_header_promotion"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
}

// ServiceFile 服务标识与全局属性。
type ServiceFile struct {
	Name       string         `mapstructure:"name"`
	Version    string         `mapstructure:"version"`
	Attributes map[string]any `mapstructure:"attributes"`
}

// LogFile 日志配置。
type LogFile struct {
	Debug             bool `mapstructure:"debug"`
	DisablePrintRoute bool `mapstructure:"disable_print_route"`
}

// ExporterFile 导出器选择。
//
// Kind 可选 none、console、zap、otel；otel 在 Endpoint 为空时输出到标准输出，
// 否则以 OTLP/HTTP 发往 Endpoint。
type ExporterFile struct {
	Kind     string `mapstructure:"kind"`
	Endpoint string `mapstructure:"endpoint"`
	Logs     bool   `mapstructure:"logs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", defaultAddr)
	v.SetDefault("server.network", defaultNetwork)
	v.SetDefault("server.base_path", defaultBasePath)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.idle_timeout", defaultReadTimeout)
	v.SetDefault("server.exit_wait_timeout", consts.DefaultExitWaitTimeout)
	v.SetDefault("server.max_request_body_size", consts.DefaultMaxRequestBodySize)
	v.SetDefault("server.compress", false)
	v.SetDefault("server.access_log", false)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("request.default_timeout", consts.DefaultRouteTimeout)
	v.SetDefault("request.id_headers", []string{})
	v.SetDefault("request.trace_header", defaultTraceHeader)
	v.SetDefault("request.ip_headers", []string{})
	v.SetDefault("request.ip_header_promotion", false)
	v.SetDefault("request.trusted_proxies", []string{})

	v.SetDefault("service.name", defaultServiceName)
	v.SetDefault("service.version", "")
	v.SetDefault("service.attributes", map[string]any{})

	v.SetDefault("log.debug", false)
	v.SetDefault("log.disable_print_route", false)

	v.SetDefault("exporter.kind", "console")
	v.SetDefault("exporter.endpoint", "")
	v.SetDefault("exporter.logs", false)
}

// Load 读取 YAML 配置文件，再以 WINDX_ 前缀的环境变量覆盖。
//
// path 为空时只读取默认值与环境变量。
func Load(path string) (*File, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 出错: %w", path, err)
		}
	}

	f := &File{}
	if err := v.Unmarshal(f); err != nil {
		return nil, fmt.Errorf("解析配置出错: %w", err)
	}
	switch f.Exporter.Kind {
	case "none", "console", "zap", "otel":
	default:
		return nil, fmt.Errorf("未知的导出器类型 %q", f.Exporter.Kind)
	}
	return f, nil
}
