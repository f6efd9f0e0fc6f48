//go:build (linux || windows || darwin) && (amd64 || arm64) && !stdjson

package json

import "github.com/bytedance/sonic"

// Name 当前生效的 JSON 实现。
const Name = "sonic"

var (
	api = sonic.ConfigStd

	// Marshal 以 sonic 编码。
	Marshal = api.Marshal
	// MarshalToString 以 sonic 编码为字符串，省去一次拷贝。
	MarshalToString = api.MarshalToString
	// Unmarshal 以 sonic 解码。
	Unmarshal = api.Unmarshal
	// NewDecoder 读取 io.Reader 的 JSON 解码器。
	NewDecoder = api.NewDecoder
	// NewEncoder 写入 io.Writer 的 JSON 编码器。
	NewEncoder = api.NewEncoder
	// Valid 判断字节序列是否为合法 JSON。
	Valid = api.Valid
)
