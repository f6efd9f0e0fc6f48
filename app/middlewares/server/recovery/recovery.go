package recovery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/favbox/windx/app"
)

var (
	dunno     = []byte("???")
	slash     = []byte("/")
	dot       = []byte(".")
	centerDot = []byte("·")
)

// Recovery 返回引擎级的恐慌回调，通过 Engine.OnPanic 注册。
//
// 默认记录恐慌内容与堆栈，并置 500 交由错误处理路由分诊。
// 通过 WithRecoveryHandler 可自定义恐慌后的响应。
func Recovery(opts ...Option) app.PanicHandler {
	cfg := newOptions(opts...)

	return func(ctx context.Context, ex *app.Exchange, err any) {
		cfg.recoveryHandler(ctx, ex, err, stack(4))
	}
}

// stack 跳过 skip 帧后，返回带源码行的堆栈。
func stack(skip int) []byte {
	buf := new(bytes.Buffer)
	var lines [][]byte
	var lastFile string
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(buf, "%s:%d (0x%x)\n", file, line, pc)
		if file != lastFile {
			data, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			lines = bytes.Split(data, []byte{'\n'})
			lastFile = file
		}
		fmt.Fprintf(buf, "\t%s: %s\n", function(pc), source(lines, line))
	}
	return buf.Bytes()
}

// source 返回第 n 行（从 1 计）去掉首尾空白的内容。
func source(lines [][]byte, n int) []byte {
	n--
	if n < 0 || n >= len(lines) {
		return dunno
	}
	return bytes.TrimSpace(lines[n])
}

// function 返回 pc 所在函数的短名称，如 *T.method。
func function(pc uintptr) []byte {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return dunno
	}
	name := []byte(fn.Name())

	// 包路径可能带句点，先去掉最后一个斜杠之前的部分
	if lastSlash := bytes.LastIndex(name, slash); lastSlash >= 0 {
		name = name[lastSlash+1:]
	}
	if period := bytes.Index(name, dot); period >= 0 {
		name = name[period+1:]
	}
	return bytes.ReplaceAll(name, centerDot, dot)
}
