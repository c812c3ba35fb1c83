package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/analytics/store"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/messaging"
	kvstore "github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_Clicks(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("stores clicks per code, newest first", func(t *testing.T) {
		s := store.NewKV(kvstore.NewMemoryStore(), kv.JSONCodec{})

		for i := range 3 {
			err := s.SaveLinkClicked(ctx, &analytics.LinkClickedEvent{
				Code:      "abc",
				ClickedAt: base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		require.NoError(t, s.SaveLinkClicked(ctx, &analytics.LinkClickedEvent{Code: "other", ClickedAt: base}))

		clicks, err := s.Clicks(ctx, "abc", 0)
		require.NoError(t, err)
		require.Len(t, clicks, 3)
		assert.True(t, clicks[0].ClickedAt.Equal(base.Add(2*time.Minute)))

		limited, err := s.Clicks(ctx, "abc", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("redelivered events are stored once", func(t *testing.T) {
		s := store.NewKV(kvstore.NewMemoryStore(), kv.JSONCodec{})
		eventCtx := messaging.WithEventID(ctx, "msg-1")
		event := &analytics.LinkClickedEvent{Code: "abc", ClickedAt: base}

		require.NoError(t, s.SaveLinkClicked(eventCtx, event))
		require.NoError(t, s.SaveLinkClicked(eventCtx, event))

		clicks, err := s.Clicks(ctx, "abc", 0)
		require.NoError(t, err)
		assert.Len(t, clicks, 1)
	})

	t.Run("created events are keyed by code", func(t *testing.T) {
		mem := kvstore.NewMemoryStore()
		s := store.NewKV(mem, kv.JSONCodec{})

		require.NoError(t, s.SaveLinkCreated(ctx, &analytics.LinkCreatedEvent{Code: "abc", CreatedAt: base}))

		entry, err := mem.Get(ctx, kv.Key{"linkEvents", "abc"})
		require.NoError(t, err)
		assert.NotNil(t, entry)
	})
}
