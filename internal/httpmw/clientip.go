package httpmw

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ClientIP resolves the client address and stores it in the context for the
// access log and the per-client limiter.
//
// trustedHops is the number of reverse proxies in front of this server that
// append to X-Forwarded-For. 0 ignores the header entirely, 1 takes the
// rightmost entry (single load balancer), 2 the second from the end, etc.
// The header is only honored when the peer itself is a private address.
func ClientIP(trustedHops int) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trustedHops)
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
		})
	}
}

func resolveClientIP(r *http.Request, trustedHops int) string {
	if r.RemoteAddr == "" {
		return "0.0.0.0"
	}

	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil {
		return "0.0.0.0"
	}

	xff := r.Header.Get("X-Forwarded-For")
	if trustedHops <= 0 || !(ip.IsPrivate() || ip.IsLoopback()) || xff == "" {
		// nobody downstream may trust forwarded headers we did not vouch for
		stripForwarded(r)
		return peer
	}

	parts := strings.Split(xff, ",")
	idx := len(parts) - trustedHops
	if idx < 0 {
		// fewer entries than proxies: misconfiguration or spoofing, fail closed
		stripForwarded(r)
		return peer
	}
	if candidate := strings.TrimSpace(parts[idx]); net.ParseIP(candidate) != nil {
		return candidate
	}
	return peer
}

func stripForwarded(r *http.Request) {
	r.Header.Del("X-Forwarded-For")
	r.Header.Del("X-Forwarded-Proto")
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}
