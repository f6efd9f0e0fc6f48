package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// 交换体与分发引擎使用的哨兵错误。
var (
	ErrLocked           = errors.New("交换体已锁定，禁止修改响应")
	ErrInvalidStatus    = errors.New("未收录的 HTTP 状态码")
	ErrInvalidPayload   = errors.New("无效的响应载荷")
	ErrInvalidHeader    = errors.New("无效的响应头")
	ErrInvalidTimeout   = errors.New("超时时长必须为正数")
	ErrBodyTooLarge     = errors.New("正文大小超过给定限制")
	ErrTimeout          = errors.New("请求超时")
	ErrAborted          = errors.New("请求已中止")
	ErrNoAdapter        = errors.New("交换体未绑定传输适配器")
	ErrNotFound         = errors.New("资源不存在")
	ErrNilHandler       = errors.New("处理器不能为空")
	ErrServerNotServing = errors.New("服务器未在运行")
)

// ErrorType 错误的分类，支持按位或组合。
type ErrorType uint64

const (
	// ErrorTypeValidation 响应辅助方法的参数校验失败，操作退化为空操作。
	ErrorTypeValidation ErrorType = 1 << iota
	// ErrorTypeInit 初始化阶段（加载正文）失败，映射为 400 或 413。
	ErrorTypeInit
	// ErrorTypeChain 中间件或处理器返回错误或发生恐慌。
	ErrorTypeChain
	// ErrorTypeSubCall 子请求（Fetch）失败，唯一向调用方返回的错误。
	ErrorTypeSubCall
	// ErrorTypePrivate 表示一个私有的错误。
	ErrorTypePrivate
	// ErrorTypePublic 表示一个公开的错误。
	ErrorTypePublic
	// ErrorTypeAny 表示任何其他错误。
	ErrorTypeAny
)

var typeNames = map[ErrorType]string{
	ErrorTypeValidation: "validation",
	ErrorTypeInit:       "init",
	ErrorTypeChain:      "chain",
	ErrorTypeSubCall:    "subcall",
	ErrorTypePrivate:    "private",
	ErrorTypePublic:     "public",
	ErrorTypeAny:        "any",
}

func (t ErrorType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	var names []string
	for bit := ErrorTypeValidation; bit <= ErrorTypeAny; bit <<= 1 {
		if t&bit > 0 {
			names = append(names, typeNames[bit])
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("ErrorType(%d)", uint64(t))
	}
	return strings.Join(names, "|")
}

// Error 表示一个带有错误类型和元信息的错误。
type Error struct {
	Err  error
	Type ErrorType
	Meta any
}

var _ error = (*Error)(nil)

// 返回错误的消息字符串。
func (msg *Error) Error() string {
	return msg.Err.Error()
}

// JSON 返回便于序列化的错误描述。
func (msg *Error) JSON() any {
	jsonData := make(map[string]any)
	if msg.Meta != nil {
		value := reflect.ValueOf(msg.Meta)
		switch value.Kind() {
		case reflect.Struct:
			return msg.Meta
		case reflect.Map:
			for _, key := range value.MapKeys() {
				jsonData[fmt.Sprint(key.Interface())] = value.MapIndex(key).Interface()
			}
		default:
			jsonData["meta"] = msg.Meta
		}
	}
	if _, ok := jsonData["error"]; !ok {
		jsonData["error"] = msg.Error()
	}
	return jsonData
}

func (msg *Error) Unwrap() error {
	return msg.Err
}

func (msg *Error) IsType(flags ErrorType) bool {
	return (msg.Type & flags) > 0
}

func (msg *Error) SetType(flags ErrorType) *Error {
	msg.Type = flags
	return msg
}

func (msg *Error) SetMeta(data any) *Error {
	msg.Meta = data
	return msg
}

// New 新建一个指定错误、类型和元数据的错误。
func New(err error, t ErrorType, meta any) *Error {
	return &Error{
		Err:  err,
		Type: t,
		Meta: meta,
	}
}

// Wrap 以 sentinel 为根因包装一条格式化描述，errors.Is 仍可识别 sentinel。
func Wrap(sentinel error, t ErrorType, format string, v ...any) *Error {
	return New(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, v...)), t, nil)
}

func NewPublic(err string) *Error {
	return New(errors.New(err), ErrorTypePublic, nil)
}

func NewPrivate(err string) *Error {
	return New(errors.New(err), ErrorTypePrivate, nil)
}

func Newf(t ErrorType, meta any, format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), t, meta)
}

func NewPublicf(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePublic, nil)
}

func NewPrivatef(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePrivate, nil)
}

// Is 同标准库 errors.Is。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 同标准库 errors.As。
func As(err error, target any) bool {
	return errors.As(err, target)
}

// ErrorChain 错误链。
type ErrorChain []*Error

func (c ErrorChain) String() string {
	if len(c) == 0 {
		return ""
	}
	var buf strings.Builder
	for i, msg := range c {
		fmt.Fprintf(&buf, "Error #%02d: %s\n", i+1, msg.Err)
		if msg.Meta != nil {
			fmt.Fprintf(&buf, "     Meta: %v\n", msg.Meta)
		}
	}
	return buf.String()
}

// Errors 返回错误的消息字符串切片。
func (c ErrorChain) Errors() []string {
	if len(c) == 0 {
		return nil
	}
	errorStrings := make([]string, len(c))
	for i, err := range c {
		errorStrings[i] = err.Error()
	}
	return errorStrings
}

// ByType 返回按指定类型过滤的错误。支持位或|操作。
func (c ErrorChain) ByType(t ErrorType) ErrorChain {
	if len(c) == 0 {
		return nil
	}
	if t == ErrorTypeAny {
		return c
	}
	var result ErrorChain
	for _, msg := range c {
		if msg.IsType(t) {
			result = append(result, msg)
		}
	}
	return result
}

// Last 返回错误链中最后一个错误。
func (c ErrorChain) Last() *Error {
	if length := len(c); length > 0 {
		return c[length-1]
	}
	return nil
}

func (c ErrorChain) JSON() any {
	switch length := len(c); length {
	case 0:
		return nil
	case 1:
		return c.Last().JSON()
	default:
		jsonData := make([]any, length)
		for i, err := range c {
			jsonData[i] = err.JSON()
		}
		return jsonData
	}
}
