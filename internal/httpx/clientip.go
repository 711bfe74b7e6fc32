package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client's network identity, preferring proxy
// headers over the socket address: first entry in X-Forwarded-For, then
// X-Real-IP, then RemoteAddr with the port stripped. Rate limiting and
// request logging both key on this value so a client behind a proxy is
// tracked by its real address, not the proxy's.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
