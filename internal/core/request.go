// AngelaMos | 2026
// request.go

package core

import (
	"net"
	"net/http"
	"strings"
)

const UnknownClientIP = "unknown"

// ClientIP identifies the caller for rate limiting and captcha checks. The
// connection address wins; chi's RealIP has already rewritten it when the
// server trusts its proxy. The first X-Forwarded-For hop is the fallback.
func ClientIP(r *http.Request) string {
	if addr := strings.TrimSpace(r.RemoteAddr); addr != "" {
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		if net.ParseIP(addr) != nil {
			return addr
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	return UnknownClientIP
}
