//go:build stdjson || !((amd64 || arm64) && (linux || windows || darwin))

package json

import "encoding/json"

// Name 当前生效的 JSON 实现。
const Name = "encoding/json"

var (
	// Marshal 以标准库编码。
	Marshal = json.Marshal
	// Unmarshal 以标准库解码。
	Unmarshal = json.Unmarshal
	// NewDecoder 读取 io.Reader 的 JSON 解码器。
	NewDecoder = json.NewDecoder
	// NewEncoder 写入 io.Writer 的 JSON 编码器。
	NewEncoder = json.NewEncoder
	// Valid 判断字节序列是否为合法 JSON。
	Valid = json.Valid
)

// MarshalToString 编码为字符串。
func MarshalToString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}
