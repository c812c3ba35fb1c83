package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/shortlinks/internal/ratelimit"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) Record(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}

func TestPolicyLimiter(t *testing.T) {
	policy := &ratelimit.Policy{Limits: map[ratelimit.Scope][]ratelimit.LimitConfig{
		ratelimit.ScopeWrite: {{Window: time.Minute, Max: 2}},
		ratelimit.ScopeRead:  {{Window: time.Minute, Max: 5}},
	}}
	write := []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeWrite}
	read := []ratelimit.Scope{ratelimit.ScopeGlobal, ratelimit.ScopeRead}

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)

		for range 2 {
			exceeded, err := limiter.Check(context.Background(), "client1", write)

			require.NoError(t, err)
			assert.Nil(t, exceeded)
		}
	})

	t.Run("reports the exceeded limit", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)

		for range 2 {
			_, _ = limiter.Check(context.Background(), "client1", write)
		}

		exceeded, err := limiter.Check(context.Background(), "client1", write)

		require.NoError(t, err)
		require.NotNil(t, exceeded)
		assert.Equal(t, ratelimit.ScopeWrite, exceeded.Scope)
		assert.Equal(t, int64(3), exceeded.Count)
		assert.Equal(t, "write scope, 3/2 requests in 1m0s", exceeded.String())
		assert.Equal(t, time.Minute, exceeded.RetryAfter())
	})

	t.Run("tracks scopes independently", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)

		for range 3 {
			_, _ = limiter.Check(context.Background(), "client1", write)
		}

		exceeded, err := limiter.Check(context.Background(), "client1", read)

		require.NoError(t, err)
		assert.Nil(t, exceeded)
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)

		for range 3 {
			_, _ = limiter.Check(context.Background(), "client1", write)
		}

		exceeded, err := limiter.Check(context.Background(), "client2", write)

		require.NoError(t, err)
		assert.Nil(t, exceeded)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		limiter := ratelimit.NewPolicyLimiter(failingStore{}, policy)

		exceeded, err := limiter.Check(context.Background(), "client1", write)

		require.ErrorIs(t, err, errStoreDown)
		assert.Nil(t, exceeded)
	})
}

func TestDefaultPolicy(t *testing.T) {
	policy := ratelimit.DefaultPolicy(100, 30)

	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 100}}, policy.Limits[ratelimit.ScopeRead])
	assert.Len(t, policy.Limits[ratelimit.ScopeWrite], 2)
	assert.NotEmpty(t, policy.Limits[ratelimit.ScopeAuth])

	disabled := ratelimit.DefaultPolicy(0, 0)

	assert.Empty(t, disabled.Limits[ratelimit.ScopeRead])
	assert.Empty(t, disabled.Limits[ratelimit.ScopeWrite])
}

func TestPolicy_LongestWindow(t *testing.T) {
	policy := &ratelimit.Policy{Limits: map[ratelimit.Scope][]ratelimit.LimitConfig{
		ratelimit.ScopeWrite: {{Window: time.Second, Max: 1}, {Window: time.Hour, Max: 10}},
	}}

	assert.Equal(t, time.Hour, policy.LongestWindow(time.Minute))
	assert.Equal(t, time.Minute, (&ratelimit.Policy{}).LongestWindow(time.Minute))
}
