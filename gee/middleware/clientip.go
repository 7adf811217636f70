package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP 返回访问日志里记录的客户端 IP。
//
// 只有直连方是可信代理（本机或私网）时才看转发头，否则直接用 RemoteAddr，
// 公网客户端伪造的 X-Forwarded-For 会被忽略。
func ClientIP(req *http.Request) string {
	remoteHost, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		remoteHost = req.RemoteAddr
	}
	remoteIP := net.ParseIP(remoteHost)
	if remoteIP == nil || !(remoteIP.IsLoopback() || remoteIP.IsPrivate()) {
		return remoteHost
	}

	// Cloudflare -> Caddy -> app
	if cf := strings.TrimSpace(req.Header.Get("CF-Connecting-IP")); net.ParseIP(cf) != nil {
		return cf
	}
	// 第一个是原始客户端，后面是经过的代理
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
			return first
		}
	}
	if xrip := strings.TrimSpace(req.Header.Get("X-Real-IP")); net.ParseIP(xrip) != nil {
		return xrip
	}
	return remoteHost
}
