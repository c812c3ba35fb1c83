package store_test

import (
	"context"
	"testing"

	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, store.NewMemoryStore(), kv.Key{"suite"})
}

func TestMemoryStore_Isolation(t *testing.T) {
	t.Run("returned values are copies", func(t *testing.T) {
		s := store.NewMemoryStore()
		value := []byte("original")

		_, err := s.Set(context.Background(), kv.Key{"k"}, value)
		require.NoError(t, err)

		value[0] = 'X'

		entry, err := s.Get(context.Background(), kv.Key{"k"})
		require.NoError(t, err)

		entry.Value[1] = 'Y'

		again, err := s.Get(context.Background(), kv.Key{"k"})
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), again.Value)
	})

	t.Run("list can stop early", func(t *testing.T) {
		s := store.NewMemoryStore()

		for _, k := range []string{"a", "b", "c"} {
			_, err := s.Set(context.Background(), kv.Key{"p", k}, nil)
			require.NoError(t, err)
		}

		var seen []string

		for entry, err := range s.List(context.Background(), kv.Key{"p"}) {
			require.NoError(t, err)

			seen = append(seen, entry.Key[1])
			if len(seen) == 2 {
				break
			}
		}

		assert.Equal(t, []string{"a", "b"}, seen)
		assert.Equal(t, 3, s.Len())
	})
}
