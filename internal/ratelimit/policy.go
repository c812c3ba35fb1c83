package ratelimit

import "time"

// LimitConfig caps a client at Max requests per sliding Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits that apply to it. Every limit is tracked independently.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// DefaultPolicy limits reads and writes per minute and throttles sign-in flows harder.
// A non-positive limit disables that scope.
func DefaultPolicy(readsPerMinute, writesPerMinute int64) *Policy {
	policy := &Policy{Limits: make(map[Scope][]LimitConfig)}

	if readsPerMinute > 0 {
		policy.Limits[ScopeRead] = []LimitConfig{{Window: time.Minute, Max: readsPerMinute}}
	}

	if writesPerMinute > 0 {
		policy.Limits[ScopeWrite] = []LimitConfig{
			{Window: time.Second, Max: max(1, writesPerMinute/10)},
			{Window: time.Minute, Max: writesPerMinute},
		}
	}

	policy.Limits[ScopeAuth] = []LimitConfig{{Window: time.Minute, Max: 20}}

	return policy
}

// LongestWindow is the widest window any limit in the policy tracks, at least floor.
func (p *Policy) LongestWindow(floor time.Duration) time.Duration {
	longest := floor

	for _, limits := range p.Limits {
		for _, limit := range limits {
			longest = max(longest, limit.Window)
		}
	}

	return longest
}
