package basic_auth

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/favbox/windx/app"
	"github.com/favbox/windx/protocol/consts"
)

// Accounts 用于构建用户名:密码映射。
type Accounts map[string]string

// 授权头:用户名的反向映射。
type pairs map[string]string

func (p pairs) findValue(needle string) (v string, ok bool) {
	v, ok = p[needle]
	return
}

func constructPairs(accounts Accounts) pairs {
	p := make(pairs, len(accounts))
	for user, password := range accounts {
		value := "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
		p[value] = user
	}
	return p
}

// BasicAuthForRealm 返回指定领域和状态键名的基本 HTTP 授权中间件。
//
// accounts 的键是用户名，值是密码。
// 凭据不匹配时设置 WWW-Authenticate 并将状态码置为 401，交由错误处理路由分诊；
// 匹配时以 userKey 为键将用户名存入交换体状态。
// 详见 http://tools.ietf.org/html/rfc2617#section-1.2
func BasicAuthForRealm(accounts Accounts, realm, userKey string) app.HandlerFunc {
	realm = "Basic realm=" + strconv.Quote(realm)
	p := constructPairs(accounts)
	return func(ctx context.Context, ex *app.Exchange) error {
		user, found := p.findValue(ex.Header(consts.HeaderAuthorization))
		if !found {
			ex.SetHeader(consts.HeaderWWWAuthenticate, realm)
			_ = ex.SetStatus(consts.StatusUnauthorized)
			return nil
		}

		ex.Set(userKey, user)
		return nil
	}
}

// BasicAuth 返回领域为 "Authorization Required"、状态键名为 "user" 的基本授权中间件。
func BasicAuth(accounts Accounts) app.HandlerFunc {
	return BasicAuthForRealm(accounts, "Authorization Required", "user")
}
