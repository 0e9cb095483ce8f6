package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/ledgersync/internal/core"
)

// withCaller records who triggered the request for the sync audit log.
func withCaller(ctx context.Context, r *http.Request) context.Context {
	return core.WithCaller(ctx, core.Caller{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
}

// clientIP returns RemoteAddr without its port. TrustedRealIP has already
// replaced it with the forwarded address when the proxy is trusted.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
