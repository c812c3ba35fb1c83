package container

import (
	"fmt"
	"time"

	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"github.com/serroba/shortlinks/internal/store"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

// RateLimitPackage provides the policy limiter and the scope resolver used by the HTTP middleware.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*ratelimit.Janitor, error) {
		window := do.MustInvoke[*ratelimit.Policy](i).LongestWindow(time.Minute)

		return ratelimit.NewJanitor(
			store.NewRateLimitMemoryStore(), sweepInterval, window, do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.Policy, error) {
		opts := do.MustInvoke[*Options](i)

		return ratelimit.DefaultPolicy(int64(opts.RateLimitReads), int64(opts.RateLimitWrites)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		opts := do.MustInvoke[*Options](i)
		policy := do.MustInvoke[*ratelimit.Policy](i)

		switch opts.RateLimitStore {
		case "", "memory":
			return ratelimit.NewPolicyLimiter(do.MustInvoke[*ratelimit.Janitor](i).Store(), policy), nil
		case "redis":
			return ratelimit.NewPolicyLimiter(store.NewRateLimitRedisStore(do.MustInvoke[*RedisClient](i).Client), policy), nil
		default:
			return nil, fmt.Errorf("unknown rate limit store %q", opts.RateLimitStore)
		}
	})

	do.Provide(injector, func(_ *do.Injector) (ratelimit.ScopeResolver, error) {
		return ratelimit.NewRouteScopeResolver(
			ratelimit.Route{Prefix: "/health", Disabled: true},
			ratelimit.Route{Prefix: "/oauth/", Scope: ratelimit.ScopeAuth},
		), nil
	})
}
