package hlog

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func initTestLogger(w *bytes.Buffer) {
	logger = newDefaultLogger(w, false)
}

const expectedLines = "[Trace] 跟踪工作\n" +
	"[Debug] 收到工作清单\n" +
	"[Info] 开始工作\n" +
	"[Notice] 工作中出现一些状况\n" +
	"[Warn] 工作可能失败\n" +
	"[Error] 工作失败\n"

func TestDefaultLogger(t *testing.T) {
	var w bytes.Buffer
	initTestLogger(&w)

	Trace("跟踪工作")
	Debug("收到工作清单")
	Info("开始工作")
	Notice("工作中出现一些状况")
	Warn("工作可能失败")
	Error("工作失败")

	assert.Equal(t, expectedLines, w.String())
}

func TestDefaultFormatLogger(t *testing.T) {
	var w bytes.Buffer
	initTestLogger(&w)

	item := "工作"
	Tracef("跟踪%s", item)
	Debugf("收到%s清单", item)
	Infof("开始%s", item)
	Noticef("%s中出现一些状况", item)
	Warnf("%s可能失败", item)
	Errorf("%s失败", item)

	assert.Equal(t, expectedLines, w.String())
}

func TestCtxLogger(t *testing.T) {
	var w bytes.Buffer
	initTestLogger(&w)

	ctx := context.Background()
	item := "工作"
	CtxTracef(ctx, "跟踪%s", item)
	CtxDebugf(ctx, "收到%s清单", item)
	CtxInfof(ctx, "开始%s", item)
	CtxNoticef(ctx, "%s中出现一些状况", item)
	CtxWarnf(ctx, "%s可能失败", item)
	CtxErrorf(ctx, "%s失败", item)

	assert.Equal(t, expectedLines, w.String())
}

func TestSetLevel(t *testing.T) {
	var w bytes.Buffer
	l := newDefaultLogger(&w, false)

	l.SetLevel(LevelWarn)
	l.Info("不输出")
	l.Notice("不输出")
	l.Warn("输出")
	l.Errorf("输出%d", 2)
	assert.Equal(t, "[Warn] 输出\n[Error] 输出2\n", w.String())

	assert.Equal(t, "[?7] ", Level(7).String())
}

func TestDetailedLoggerAddsTime(t *testing.T) {
	var w bytes.Buffer
	l := newDefaultLogger(&w, true)
	l.Info("开始")
	assert.Contains(t, w.String(), "[Info] 开始\n")
	assert.NotEqual(t, "[Info] 开始\n", w.String())
}
