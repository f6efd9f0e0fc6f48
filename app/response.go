package app

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/json"
	"github.com/favbox/windx/protocol/consts"
)

// ResponseOption 响应辅助方法的可选项。
type ResponseOption func(o *responseOptions)

type responseOptions struct {
	status      int
	cache       string
	noQuery     bool
	download    string
	contentType string
}

// WithStatus 指定响应状态码，默认沿用当前状态码（Redirect 默认 303）。
func WithStatus(code int) ResponseOption {
	return func(o *responseOptions) {
		o.status = code
	}
}

// WithCache 设置 cache-control 响应头。
func WithCache(value string) ResponseOption {
	return func(o *responseOptions) {
		o.cache = value
	}
}

// WithoutQuery 重定向时不合并原请求的查询字符串。
func WithoutQuery() ResponseOption {
	return func(o *responseOptions) {
		o.noQuery = true
	}
}

// WithDownload 以附件形式下载文件，filename 为空时使用原文件名。
func WithDownload(filename string) ResponseOption {
	return func(o *responseOptions) {
		o.download = filename
		if filename == "" {
			o.download = "*"
		}
	}
}

// WithContentType 覆盖默认的内容类型。
func WithContentType(contentType string) ResponseOption {
	return func(o *responseOptions) {
		o.contentType = contentType
	}
}

func newResponseOptions(opts []ResponseOption) *responseOptions {
	o := &responseOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// response 待提交的响应。
type response struct {
	status  int
	headers map[string]string
	body    *string
	stream  io.ReadCloser
	size    int64
}

// commit 在一次加锁内写入状态码、响应头与正文并完成交换。
// 状态码或响应头无效、已锁定时返回错误，交换体保持原样。
func (ex *Exchange) commit(op string, r response) *errors.Error {
	if r.status != 0 && !consts.IsKnownStatus(r.status) {
		return errors.Wrap(errors.ErrInvalidStatus, errors.ErrorTypeValidation, "%s: %d", op, r.status)
	}
	for k, v := range r.headers {
		if err := validateHeader(k, v); err != nil {
			return err
		}
	}

	ex.mu.Lock()
	if ex.done || ex.aborted {
		ex.mu.Unlock()
		return errors.Wrap(errors.ErrLocked, errors.ErrorTypeValidation, "%s", op)
	}
	changed := false
	if r.status != 0 && r.status != ex.status {
		ex.status = r.status
		changed = true
	}
	status := ex.status
	for k, v := range r.headers {
		ex.respHeaders[strings.ToLower(k)] = v
	}
	if r.body != nil {
		ex.respBody = r.body
	}
	if r.stream != nil {
		ex.respStream = r.stream
		ex.streamSize = r.size
	}
	ex.endLocked()
	ex.mu.Unlock()

	if changed {
		ex.emitStatus(status)
	}
	return nil
}

// locked 在辅助方法入口检查锁定，已锁定时记录错误。
func (ex *Exchange) locked(op string) bool {
	if ex.IsLocked() {
		ex.report(errors.Wrap(errors.ErrLocked, errors.ErrorTypeValidation, "%s", op))
		return true
	}
	return false
}

func withCache(headers map[string]string, o *responseOptions) map[string]string {
	if o.cache != "" {
		headers[consts.HeaderCacheControl] = o.cache
	}
	return headers
}

// Status 以指定状态码完成交换，不写正文。
func (ex *Exchange) Status(code int, opts ...ResponseOption) {
	if ex.locked("Status") {
		return
	}
	o := newResponseOptions(opts)
	if err := ex.commit("Status", response{
		status:  code,
		headers: withCache(map[string]string{}, o),
	}); err != nil {
		ex.report(err)
	}
}

// JSON 将 obj 序列化为 JSON 并完成交换。
//
// 仅接受 map、切片、数组、结构体及其指针；序列化失败时交换体保持原样。
func (ex *Exchange) JSON(obj any, opts ...ResponseOption) {
	if ex.locked("JSON") {
		return
	}
	if !isJSONPayload(obj) {
		ex.report(errors.Wrap(errors.ErrInvalidPayload, errors.ErrorTypeValidation, "JSON 不支持 %T", obj))
		return
	}
	body, err := json.MarshalToString(obj)
	if err != nil {
		ex.report(errors.Wrap(errors.ErrInvalidPayload, errors.ErrorTypeValidation, "JSON 序列化失败: %v", err))
		return
	}
	ex.writeText("JSON", consts.MIMEApplicationJSON, body, opts)
}

// HTML 以 text/html 完成交换。
func (ex *Exchange) HTML(body string, opts ...ResponseOption) {
	if ex.locked("HTML") {
		return
	}
	ex.writeText("HTML", consts.MIMETextHTML, body, opts)
}

// Text 以 text/plain 完成交换。
func (ex *Exchange) Text(body string, opts ...ResponseOption) {
	if ex.locked("Text") {
		return
	}
	ex.writeText("Text", consts.MIMETextPlain, body, opts)
}

func (ex *Exchange) writeText(op, contentType, body string, opts []ResponseOption) {
	o := newResponseOptions(opts)
	if o.contentType != "" {
		contentType = o.contentType
	}
	headers := withCache(map[string]string{consts.HeaderContentType: contentType}, o)
	if err := ex.commit(op, response{status: o.status, headers: headers, body: &body}); err != nil {
		ex.report(err)
	}
}

func isJSONPayload(obj any) bool {
	if obj == nil {
		return false
	}
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// Redirect 重定向到 to，默认状态码 303。
//
// 相对地址（非绝对地址、非 // 与 / 开头）会补上当前源站，http:// 升级为 https://；
// 未指定 WithoutQuery 且请求带有查询字符串时，将其合并到目标地址。
func (ex *Exchange) Redirect(to string, opts ...ResponseOption) {
	if ex.locked("Redirect") {
		return
	}
	o := newResponseOptions(opts)
	if o.status == 0 {
		o.status = consts.DefaultRedirectStatus
	}
	if !consts.IsRedirectStatus(o.status) {
		ex.report(errors.Wrap(errors.ErrInvalidStatus, errors.ErrorTypeValidation, "重定向状态码 %d", o.status))
		return
	}
	if strings.TrimSpace(to) == "" {
		ex.report(errors.Wrap(errors.ErrInvalidPayload, errors.ErrorTypeValidation, "重定向地址为空"))
		return
	}

	target, ok := ex.redirectTarget(to)
	if !ok {
		ex.report(errors.Wrap(errors.ErrInvalidPayload, errors.ErrorTypeValidation, "无法确定源站，重定向地址 %q", to))
		return
	}
	if !o.noQuery && ex.rawQuery != "" {
		target = mergeQuery(target, ex.rawQuery)
	}

	headers := withCache(map[string]string{consts.HeaderLocation: target}, o)
	if err := ex.commit("Redirect", response{status: o.status, headers: headers}); err != nil {
		ex.report(err)
	}
}

// redirectTarget 补全相对地址，请求没有主机时返回 false。
func (ex *Exchange) redirectTarget(to string) (string, bool) {
	if u, err := url.Parse(to); err == nil && u.IsAbs() {
		return to, true
	}
	if strings.HasPrefix(to, "/") {
		return to, true
	}
	o, ok := origin(ex.host)
	if !ok {
		return "", false
	}
	return o + "/" + to, true
}

// origin 返回 https 协议的源站。
func origin(host string) (string, bool) {
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	host = strings.Trim(host, "/")
	if host == "" {
		return "", false
	}
	return "https://" + host, true
}

// mergeQuery 将 rawQuery 合并到 target 的查询字符串，片段保持在末尾。
func mergeQuery(target, rawQuery string) string {
	target, fragment, hasFragment := strings.Cut(target, "#")
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	target += sep + rawQuery
	if hasFragment {
		target += "#" + fragment
	}
	return target
}

// File 通过传输适配器打开 path 并以流的形式完成交换。
//
// 文件不存在时仅置 404 而不锁定，交由分发引擎分诊。
func (ex *Exchange) File(path string, opts ...ResponseOption) {
	if ex.locked("File") {
		return
	}
	if ex.adapter == nil {
		ex.report(errors.Wrap(errors.ErrNoAdapter, errors.ErrorTypeValidation, "File %s", path))
		return
	}

	stream, size, err := ex.adapter.Stream(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ex.logger.Warn("文件不存在", path)
			_ = ex.SetStatus(consts.StatusNotFound)
			return
		}
		ex.report(errors.New(fmt.Errorf("打开文件 %s: %w", path, err), errors.ErrorTypeValidation, nil))
		return
	}

	o := newResponseOptions(opts)
	contentType := o.contentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = consts.MIMEOctetStream
	}
	headers := withCache(map[string]string{consts.HeaderContentType: contentType}, o)
	if o.download != "" {
		name := o.download
		if name == "*" {
			name = filepath.Base(path)
		}
		headers[consts.HeaderContentDisposition] = mime.FormatMediaType("attachment", map[string]string{"filename": name})
	}

	if err := ex.commit("File", response{status: o.status, headers: headers, stream: stream, size: size}); err != nil {
		_ = stream.Close()
		ex.report(err)
	}
}
