package tracer

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/google/uuid"
)

const (
	traceIDLen = 32
	spanIDLen  = 16
)

// IsValidTraceID 判断 id 是否为 32 位小写十六进制且不全为零。
func IsValidTraceID(id string) bool {
	return isLowerHex(id, traceIDLen)
}

// IsValidSpanID 判断 id 是否为 16 位小写十六进制且不全为零。
func IsValidSpanID(id string) bool {
	return isLowerHex(id, spanIDLen)
}

func isLowerHex(id string, n int) bool {
	if len(id) != n {
		return false
	}
	nonZero := false
	for i := 0; i < n; i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9':
			nonZero = nonZero || c != '0'
		case c >= 'a' && c <= 'f':
			nonZero = true
		default:
			return false
		}
	}
	return nonZero
}

// NewTraceID 生成新的追踪 ID（随机 UUID 的 32 位十六进制形式）。
func NewTraceID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// NewSpanID 生成新的跨度 ID（16 位十六进制）。
func NewSpanID() string {
	v := fastrand.Uint64()
	for v == 0 {
		v = fastrand.Uint64()
	}
	s := strconv.FormatUint(v, 16)
	if len(s) < spanIDLen {
		s = strings.Repeat("0", spanIDLen-len(s)) + s
	}
	return s
}

// NormalizeTraceID 将外部传入的 ID 规整为追踪 ID：
// 32 位十六进制忽略大小写，UUID 形式去掉连字符。无法规整时返回 false。
func NormalizeTraceID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	switch len(id) {
	case traceIDLen:
		id = strings.ToLower(id)
	case 36:
		u, err := uuid.Parse(id)
		if err != nil {
			return "", false
		}
		id = hex.EncodeToString(u[:])
	default:
		return "", false
	}
	if !IsValidTraceID(id) {
		return "", false
	}
	return id, true
}
