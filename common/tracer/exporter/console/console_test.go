package console

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/favbox/windx/common/json"
	"github.com/favbox/windx/common/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestConsoleLogs(t *testing.T) {
	var buf bytes.Buffer
	e := New(WithWriter(&buf), WithMinLevel(tracer.LevelInfo))
	require.NoError(t, e.Init(tracer.Attributes{"service.name": "demo"}))

	require.NoError(t, e.PushLog(tracer.LogRecord{Level: tracer.LevelDebug, Message: "skip"}))
	require.NoError(t, e.PushLog(tracer.LogRecord{Level: tracer.LevelWarn, Message: "hello", TraceID: "abc"}))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "log", lines[0]["kind"])
	assert.Equal(t, map[string]any{"service.name": "demo"}, lines[0]["global"])
	log := lines[0]["log"].(map[string]any)
	assert.Equal(t, "hello", log["message"])
	assert.Equal(t, "abc", log["trace_id"])
}

func TestConsoleSpans(t *testing.T) {
	var buf bytes.Buffer
	e := NewWithSpans(WithWriter(&buf))

	var _ tracer.SpanPusher = e
	e.PushSpan(tracer.SpanRecord{Name: "GET /", TraceID: "t", SpanID: "s"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "span", lines[0]["kind"])
	assert.Equal(t, "GET /", lines[0]["span"].(map[string]any)["name"])
}
