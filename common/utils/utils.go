package utils

import (
	"path"
	"reflect"
	"runtime"
	"strings"
)

// H 是 map[string]any 的快捷方式。
type H map[string]any

// Assert 守卫不成立时以 text 恐慌，仅用于注册期的编程错误。
func Assert(guard bool, text string) {
	if !guard {
		panic(text)
	}
}

// NameOfFunction 获取函数的完整名称，如 github.com/x/y.(*T).Method-fm。
func NameOfFunction(f any) string {
	if f == nil {
		return ""
	}
	fn := runtime.FuncForPC(reflect.ValueOf(f).Pointer())
	if fn == nil {
		return ""
	}
	return fn.Name()
}

// ShortNameOfFunction 去掉包路径和方法值后缀，只保留末段名称。
func ShortNameOfFunction(f any) string {
	name := NameOfFunction(f)
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// FilterContentType 去掉内容类型中的参数部分，如 "text/plain; charset=utf-8" → "text/plain"。
func FilterContentType(content string) string {
	for i, char := range content {
		if char == ' ' || char == ';' {
			return content[:i]
		}
	}
	return content
}

// JoinPaths 拼接路由组的基础路径与相对路径，保留相对路径的尾部斜杠。
func JoinPaths(absolutePath, relativePath string) string {
	if relativePath == "" {
		return absolutePath
	}

	finalPath := path.Join(absolutePath, relativePath)
	if strings.HasSuffix(relativePath, "/") && !strings.HasSuffix(finalPath, "/") {
		return finalPath + "/"
	}
	return finalPath
}

// HasPathPrefix 判断 p 是否位于前缀 prefix 之下（按路径段比较）。
func HasPathPrefix(p, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}
