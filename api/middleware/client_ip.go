package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// TrustProxies resolves the caller address once per request and stores it for
// ClientIP. hops is the number of reverse proxies in front of the service;
// each appends its peer to X-Forwarded-For, so the caller is the hops-th entry
// from the right. Entries further left are client supplied and ignored. With
// hops == 0 forwarding headers are ignored and RemoteAddr is used.
func TrustProxies(hops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, resolveClientIP(r, hops))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address resolved by TrustProxies, or RemoteAddr when
// the request did not pass through it.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return resolveClientIP(r, 0)
}

func resolveClientIP(r *http.Request, hops int) string {
	if hops > 0 {
		var chain []string
		for hop := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
			if ip := strings.TrimSpace(hop); ip != "" {
				chain = append(chain, ip)
			}
		}
		switch {
		case len(chain) >= hops:
			return chain[len(chain)-hops]
		case len(chain) > 0:
			// fewer hops than proxies: every entry was appended by a proxy
			return chain[0]
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
