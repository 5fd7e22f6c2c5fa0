package forgehttp

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"
)

// clientIP resolves the real client address. Forwarding headers are only
// honored when the direct peer is a configured trusted proxy, otherwise
// anyone could spoof their way around the rate limit.
func clientIP(ctx *fasthttp.RequestCtx) string {
	direct := remoteIP(ctx)

	if !isTrustedProxy(direct) {
		return direct
	}

	if forwarded := string(ctx.Request.Header.Peek("X-Forwarded-For")); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if realIP := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Real-IP"))); realIP != "" {
		if net.ParseIP(realIP) != nil {
			return realIP
		}
	}

	return direct
}

func remoteIP(ctx *fasthttp.RequestCtx) string {
	if tcpAddr, ok := ctx.RemoteAddr().(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}

	return ""
}

func isTrustedProxy(ip string) bool {
	for _, trusted := range trustedProxies {
		if ip == trusted {
			return true
		}
	}

	return false
}
