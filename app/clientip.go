package app

import (
	"net"
	"slices"
	"strings"
	"sync"

	"github.com/favbox/windx/protocol/consts"
)

// DefaultIPHeaders 默认的客户端 IP 请求头优先级。
func DefaultIPHeaders() []string {
	return []string{
		consts.HeaderCFConnectingIP,
		consts.HeaderTrueClientIP,
		consts.HeaderXRealIP,
		consts.HeaderXForwardedFor,
		consts.HeaderXClientIP,
		consts.HeaderFlyClientIP,
	}
}

// IPHeaderPriority 客户端 IP 请求头的有序列表。
//
// 开启提升后，成功解析出地址的请求头会被移到队首，后续请求优先检查它。
// 提升只改变检查顺序，不影响单个请求的解析结果；默认关闭，顺序保持静态。
type IPHeaderPriority struct {
	mu      sync.RWMutex
	headers []string
	promote bool
}

// NewIPHeaderPriority 创建请求头优先级列表，名称统一转为小写。
func NewIPHeaderPriority(headers []string, promote bool) *IPHeaderPriority {
	hs := make([]string, 0, len(headers))
	for _, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !slices.Contains(hs, h) {
			hs = append(hs, h)
		}
	}
	return &IPHeaderPriority{headers: hs, promote: promote}
}

// Headers 返回当前顺序的拷贝。
func (p *IPHeaderPriority) Headers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.headers)
}

// Promote 将 name 移到队首；未开启提升或已在队首时不做任何事。
func (p *IPHeaderPriority) Promote(name string) {
	if !p.promote {
		return
	}
	p.mu.RLock()
	first := len(p.headers) > 0 && p.headers[0] == name
	p.mu.RUnlock()
	if first {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.headers, name)
	if i <= 0 {
		return
	}
	copy(p.headers[1:i+1], p.headers[:i])
	p.headers[0] = name
}

// ClientIPOptions 客户端 IP 解析配置。
type ClientIPOptions struct {
	// Headers 按优先级检查的请求头，nil 时使用 DefaultIPHeaders 的静态顺序。
	Headers *IPHeaderPriority
	// TrustedCIDRs 可信代理网段。对端属于可信代理时才检查请求头，
	// X-Forwarded-For 中的可信代理地址会被跳过。nil 表示信任全部地址。
	TrustedCIDRs []*net.IPNet
}

var defaultTrustedCIDRs = []*net.IPNet{
	{ // 0.0.0.0/0 (IPv4)
		IP:   net.IPv4zero.To4(),
		Mask: net.CIDRMask(0, 32),
	},
	{ // ::/0 (IPv6)
		IP:   net.IPv6zero,
		Mask: net.CIDRMask(0, 128),
	},
}

// ParseTrustedCIDRs 解析可信代理网段，单个 IP 视为 /32 或 /128。
func ParseTrustedCIDRs(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if !strings.Contains(c, "/") {
			if ip := net.ParseIP(c); ip != nil && ip.To4() != nil {
				c += "/32"
			} else {
				c += "/128"
			}
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, err
		}
		nets = append(nets, n)
	}
	return nets, nil
}

var defaultIPHeaders = NewIPHeaderPriority(DefaultIPHeaders(), false)

// resolveClientIP 解析客户端 IP：对端为可信代理（或对端未知）时按优先级检查请求头，
// 否则使用对端地址。
func resolveClientIP(opts ClientIPOptions, remote string, header func(string) string) string {
	priority := opts.Headers
	if priority == nil {
		priority = defaultIPHeaders
	}
	trusted := opts.TrustedCIDRs
	if trusted == nil {
		trusted = defaultTrustedCIDRs
	}

	remote = strings.TrimSpace(remote)
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	remoteIP := net.ParseIP(remote)
	if remote != "" && (remoteIP == nil || !isTrustedProxy(trusted, remoteIP)) {
		return remote
	}

	for _, name := range priority.Headers() {
		if ip, ok := validateIPHeader(trusted, header(name)); ok {
			priority.Promote(name)
			return ip
		}
	}
	return remote
}

// isTrustedProxy 基于 trustedCIDRs 检查 IP 地址是否包含在受信任的列表中。
func isTrustedProxy(trustedCIDRs []*net.IPNet, remoteIP net.IP) bool {
	for _, cidr := range trustedCIDRs {
		if cidr.Contains(remoteIP) {
			return true
		}
	}
	return false
}

// validateIPHeader 从右向左检查逗号分隔的地址列表，返回第一个不受信任的地址，
// 全部可信时返回最左侧的地址。
func validateIPHeader(trustedCIDRs []*net.IPNet, header string) (clientIP string, valid bool) {
	if header == "" {
		return "", false
	}
	items := strings.Split(header, ",")
	for i := len(items) - 1; i >= 0; i-- {
		ipStr := strings.TrimSpace(items[i])
		ip := net.ParseIP(ipStr)
		if ip == nil {
			break
		}

		// X-Forwarded-For 由代理追加，反向检查直到找到不受信任的地址。
		if i == 0 || !isTrustedProxy(trustedCIDRs, ip) {
			return ipStr, true
		}
	}
	return "", false
}
