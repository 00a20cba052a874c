package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientKey struct{}

// Client identifies the caller of a request. It is recorded into audit
// event context by the mutating task operations.
type Client struct {
	IP        string
	UserAgent string
}

// ClientInfo returns middleware that resolves the caller's address and user agent
// and stores them on the request context. The first X-Forwarded-For entry wins
// over RemoteAddr when present.
func ClientInfo() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := Client{
				IP:        clientIP(r),
				UserAgent: r.UserAgent(),
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, c)))
		})
	}
}

// ClientFromContext returns the Client stored by ClientInfo, or a zero Client.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
