package igclient

import (
	"fmt"
	"net/http"
	"net/url"

	xproxy "golang.org/x/net/proxy"

	"github.com/d60-Lab/content-factory/internal/model"
)

// NewProxyTransport 按代理类型构造 http.RoundTripper。
// proxy 为 nil 时走直连（仅用于探测配置本身）。
func NewProxyTransport(p *model.Proxy) (*http.Transport, error) {
	if p == nil {
		return &http.Transport{}, nil
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	switch p.Type {
	case model.ProxyTypeHTTP:
		return &http.Transport{Proxy: http.ProxyURL(u)}, nil
	case model.ProxyTypeSOCKS5:
		var auth *xproxy.Auth
		if u.User != nil {
			pw, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: pw}
		}
		dialer, err := xproxy.SOCKS5("tcp", u.Host, auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		tr := &http.Transport{}
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		} else {
			tr.Dial = dialer.Dial
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s", p.Type)
	}
}
