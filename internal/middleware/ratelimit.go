package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/serroba/shortlinks/internal/ratelimit"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
}

// RateLimiter returns a middleware that applies policy-based rate limiting.
// The resolver decides which scopes apply to each request; a request with no
// scopes passes through unchecked.
func RateLimiter(
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes := resolver.Resolve(r)
			if len(scopes) == 0 {
				next.ServeHTTP(w, r)

				return
			}

			exceeded, err := limiter.Check(r.Context(), ClientKey(r), scopes)
			if err != nil {
				logger.Error("rate limit check failed", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Internal Server Error")

				return
			}

			if exceeded != nil {
				logger.Warn("rate limit exceeded",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("scope", string(exceeded.Scope)),
					zap.Int64("count", exceeded.Count),
					zap.Int64("max", exceeded.Config.Max),
					zap.Duration("window", exceeded.Config.Window),
					zap.String("client_ip", ClientIP(r)),
				)

				w.Header().Set("Retry-After", strconv.Itoa(int(exceeded.RetryAfter().Seconds())))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded: "+exceeded.String())

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey generates a unique key for rate limiting based on IP and User-Agent.
func ClientKey(r *http.Request) string {
	hash := sha256.Sum256([]byte(ClientIP(r) + "|" + r.UserAgent()))

	return hex.EncodeToString(hash[:])
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}
