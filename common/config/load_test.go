package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/favbox/windx/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "windx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, f.Server.Addr)
	assert.Equal(t, defaultNetwork, f.Server.Network)
	assert.Equal(t, defaultReadTimeout, f.Server.ReadTimeout)
	assert.Equal(t, consts.DefaultExitWaitTimeout, f.Server.ExitWaitTimeout)
	assert.Equal(t, int64(consts.DefaultMaxRequestBodySize), f.Server.MaxRequestBodySize)
	assert.Equal(t, consts.DefaultRouteTimeout, f.Request.DefaultTimeout)
	assert.Equal(t, defaultTraceHeader, f.Request.TraceHeader)
	assert.Empty(t, f.Request.IDHeaders)
	assert.Equal(t, defaultServiceName, f.Service.Name)
	assert.Equal(t, "console", f.Exporter.Kind)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
  read_timeout: 10s
  max_request_body_size: 1024
  compress: true
  cors_origins:
    - https://example.com
request:
  default_timeout: 2s
  id_headers: [x-request-id]
  trusted_proxies: [10.0.0.0/8]
service:
  name: orders
  version: 1.0.0
  attributes:
    env: prod
log:
  debug: true
exporter:
  kind: otel
  endpoint: localhost:4318
`)
	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", f.Server.Addr)
	assert.Equal(t, 10*time.Second, f.Server.ReadTimeout)
	assert.Equal(t, defaultReadTimeout, f.Server.IdleTimeout)
	assert.Equal(t, int64(1024), f.Server.MaxRequestBodySize)
	assert.True(t, f.Server.Compress)
	assert.Equal(t, []string{"https://example.com"}, f.Server.CORSOrigins)
	assert.Equal(t, 2*time.Second, f.Request.DefaultTimeout)
	assert.Equal(t, []string{"x-request-id"}, f.Request.IDHeaders)
	assert.Equal(t, []string{"10.0.0.0/8"}, f.Request.TrustedProxies)
	assert.Equal(t, "orders", f.Service.Name)
	assert.Equal(t, "1.0.0", f.Service.Version)
	assert.Equal(t, "prod", f.Service.Attributes["env"])
	assert.True(t, f.Log.Debug)
	assert.Equal(t, "otel", f.Exporter.Kind)
	assert.Equal(t, "localhost:4318", f.Exporter.Endpoint)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: :9000\n")
	t.Setenv("WINDX_SERVER_ADDR", ":9100")
	t.Setenv("WINDX_REQUEST_DEFAULT_TIMEOUT", "5s")
	t.Setenv("WINDX_SERVICE_NAME", "billing")
	t.Setenv("WINDX_EXPORTER_KIND", "zap")

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", f.Server.Addr)
	assert.Equal(t, 5*time.Second, f.Request.DefaultTimeout)
	assert.Equal(t, "billing", f.Service.Name)
	assert.Equal(t, "zap", f.Exporter.Kind)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "exporter:\n  kind: kafka\n"))
	assert.ErrorContains(t, err, "kafka")
}
