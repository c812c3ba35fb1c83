package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// LimitExceeded names the first limit a request went over.
type LimitExceeded struct {
	Scope  Scope
	Config LimitConfig
	Count  int64
}

func (e *LimitExceeded) String() string {
	return fmt.Sprintf("%s scope, %d/%d requests in %s", e.Scope, e.Count, e.Config.Max, e.Config.Window)
}

// RetryAfter is the longest a client may have to wait before the window admits it again.
func (e *LimitExceeded) RetryAfter() time.Duration {
	return e.Config.Window
}

// PolicyLimiter checks requests against every limit of their resolved scopes.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{store: store, policy: policy}
}

// Check records the request under each scope limit and stops at the first one exceeded.
// A nil LimitExceeded means the request is allowed.
func (l *PolicyLimiter) Check(ctx context.Context, clientKey string, scopes []Scope) (*LimitExceeded, error) {
	for _, scope := range scopes {
		for _, limit := range l.policy.Limits[scope] {
			count, err := l.store.Record(ctx, limitKey(clientKey, scope, limit.Window), limit.Window)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", scope, err)
			}

			if count > limit.Max {
				return &LimitExceeded{Scope: scope, Config: limit, Count: count}, nil
			}
		}
	}

	return nil, nil
}

// limitKey keeps every client, scope and window pair in its own counter.
func limitKey(clientKey string, scope Scope, window time.Duration) string {
	return clientKey + ":" + string(scope) + ":" + window.String()
}
