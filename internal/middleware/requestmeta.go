package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// RequestMeta carries client metadata extracted from request headers.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
	Referrer  string
	Country   string
}

type requestMetaKey struct{}

// ContextWithRequestMeta stores meta in ctx.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the metadata stored by the RequestMeta middleware.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)

	return meta
}

// WithRequestMeta adds client IP, user-agent, referrer and country to the request context.
func WithRequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ContextWithRequestMeta(r.Context(), ExtractRequestMeta(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ExtractRequestMeta reads the metadata of r without touching its context.
func ExtractRequestMeta(r *http.Request) RequestMeta {
	return RequestMeta{
		ClientIP:  ClientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		Country:   r.Header.Get("CF-IPCountry"),
	}
}

// ClientIP extracts the client IP from the request, considering proxies.
func ClientIP(r *http.Request) string {
	// Take the first IP (original client)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
