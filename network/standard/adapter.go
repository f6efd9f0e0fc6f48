package standard

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/common/errors"
	"github.com/favbox/windx/common/json"
	"github.com/favbox/windx/common/utils"
	"github.com/favbox/windx/protocol/consts"
)

var _ app.Adapter = (*adapter)(nil)

// adapter 基于 net/http 请求实现 app.Adapter。
type adapter struct {
	r        *http.Request
	maxBytes int64

	mu       sync.Mutex
	written  bool
	deferred []func()
}

func newAdapter(r *http.Request, maxBytes int64) *adapter {
	return &adapter{r: r, maxBytes: maxBytes}
}

// LoadBody 按内容类型解析请求正文。
//
//   - application/json: 以 sonic 解码为 any
//   - application/x-www-form-urlencoded: url.Values
//   - multipart/form-data: *multipart.Form
//   - text/*: string
//   - 其他: []byte
func (a *adapter) LoadBody(_ context.Context, cfg *app.BodyParserConfig) (any, error) {
	limit := a.maxBytes
	var allowed []string
	if cfg != nil {
		if cfg.Limit > 0 {
			limit = cfg.Limit
		}
		allowed = cfg.AllowedTypes
	}
	// 中止响应已写出时处理器可能已返回，不再读取请求正文
	if a.isWritten() {
		return nil, errors.ErrAborted
	}
	if a.r.Body == nil || a.r.Body == http.NoBody {
		return nil, nil
	}
	if limit > 0 && a.r.ContentLength > limit {
		return nil, errors.ErrBodyTooLarge
	}

	mediaType := consts.MIMEOctetStream
	params := map[string]string{}
	if ct := a.r.Header.Get(consts.HeaderContentType); ct != "" {
		var err error
		mediaType, params, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("解析内容类型 %q: %w", ct, err)
		}
	}
	if len(allowed) > 0 && !slices.ContainsFunc(allowed, func(t string) bool {
		return strings.EqualFold(utils.FilterContentType(t), mediaType)
	}) {
		return nil, fmt.Errorf("不支持的内容类型 %q", mediaType)
	}

	body := io.Reader(a.r.Body)
	if limit > 0 {
		// 不传入 ResponseWriter：中止时响应可能先于读取完成写出
		body = http.MaxBytesReader(nil, a.r.Body, limit)
	}

	if mediaType == consts.MIMEMultipartForm {
		if params["boundary"] == "" {
			return nil, fmt.Errorf("multipart 正文缺少 boundary")
		}
		a.r.Body = io.NopCloser(body)
		if err := a.r.ParseMultipartForm(limit); err != nil {
			return nil, bodyError(err)
		}
		return a.r.MultipartForm, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, bodyError(err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	switch {
	case mediaType == consts.MIMEJSON || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err = json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("解析 JSON 正文: %w", err)
		}
		return v, nil
	case mediaType == consts.MIMEPOSTForm:
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, fmt.Errorf("解析表单正文: %w", err)
		}
		return values, nil
	case strings.HasPrefix(mediaType, "text/"):
		return string(data), nil
	default:
		return data, nil
	}
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errors.ErrBodyTooLarge
	}
	return err
}

// Stream 打开本地文件，目录视为不存在。
func (a *adapter) Stream(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s 是目录: %w", path, fs.ErrNotExist)
	}
	return f, info.Size(), nil
}

// ClientIP 返回对端地址。
func (a *adapter) ClientIP() string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(a.r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(a.r.RemoteAddr)
	}
	return host
}

// Defer 在响应写出后执行 fn，已写出时立即执行。
func (a *adapter) Defer(fn func()) {
	a.mu.Lock()
	if a.written {
		a.mu.Unlock()
		fn()
		return
	}
	a.deferred = append(a.deferred, fn)
	a.mu.Unlock()
}

func (a *adapter) isWritten() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

// markWritten 标记响应已写出并执行积压的回调。
func (a *adapter) markWritten() {
	a.mu.Lock()
	a.written = true
	fns := a.deferred
	a.deferred = nil
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
