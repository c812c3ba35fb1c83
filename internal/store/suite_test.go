package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/serroba/shortlinks/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the kv.Store contract below root, which must be empty.
func runStoreSuite(t *testing.T, s kv.Store, root kv.Key) {
	t.Helper()

	ctx := context.Background()
	key := func(segments ...string) kv.Key { return root.Append(segments...) }

	t.Run("get returns nil for absent key", func(t *testing.T) {
		entry, err := s.Get(ctx, key("absent"))

		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("set then get", func(t *testing.T) {
		stamp, err := s.Set(ctx, key("a"), []byte("one"))
		require.NoError(t, err)
		assert.NotEmpty(t, stamp)

		entry, err := s.Get(ctx, key("a"))
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, []byte("one"), entry.Value)
		assert.Equal(t, stamp, entry.Versionstamp)
		assert.Equal(t, key("a"), entry.Key)
	})

	t.Run("overwrite changes versionstamp", func(t *testing.T) {
		first, err := s.Set(ctx, key("b"), []byte("1"))
		require.NoError(t, err)

		second, err := s.Set(ctx, key("b"), []byte("2"))
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})

	t.Run("delete absent key succeeds", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, key("never")))
	})

	t.Run("delete removes key", func(t *testing.T) {
		_, err := s.Set(ctx, key("c"), []byte("x"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, key("c")))

		entry, err := s.Get(ctx, key("c"))
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("get many keeps input order", func(t *testing.T) {
		_, err := s.Set(ctx, key("m", "1"), []byte("1"))
		require.NoError(t, err)
		_, err = s.Set(ctx, key("m", "3"), []byte("3"))
		require.NoError(t, err)

		entries, err := s.GetMany(ctx, []kv.Key{key("m", "3"), key("m", "2"), key("m", "1")})

		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []byte("3"), entries[0].Value)
		assert.Nil(t, entries[1])
		assert.Equal(t, []byte("1"), entries[2].Value)
	})

	t.Run("list yields strict descendants in key order", func(t *testing.T) {
		for _, k := range []kv.Key{
			key("l"),
			key("l", "b"),
			key("l", "a"),
			key("l", "a", "deep"),
			key("l2", "x"),
		} {
			_, err := s.Set(ctx, k, []byte(k.String()))
			require.NoError(t, err)
		}

		entries, err := kv.Collect(s.List(ctx, key("l")))
		require.NoError(t, err)

		keys := make([]kv.Key, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}

		assert.Equal(t, []kv.Key{key("l", "a"), key("l", "a", "deep"), key("l", "b")}, keys)
	})

	t.Run("list of an unmatched prefix yields nothing", func(t *testing.T) {
		entries, err := kv.Collect(s.List(ctx, key("nothing-here")))

		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("list of the empty prefix yields every entry", func(t *testing.T) {
		_, err := s.Set(ctx, key("everything", "x"), []byte("x"))
		require.NoError(t, err)

		entries, err := kv.Collect(s.List(ctx, kv.Key{}))
		require.NoError(t, err)

		keys := make([]kv.Key, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, e.Key)
		}

		assert.Contains(t, keys, key("everything", "x"))
		assert.Contains(t, keys, key("l", "a"))
	})

	t.Run("commit applies all writes", func(t *testing.T) {
		stamp, err := s.Commit(ctx,
			kv.Check(key("tx", "a"), ""),
			kv.Set(key("tx", "a"), []byte("a")),
			kv.Set(key("tx", "b"), []byte("b")),
		)
		require.NoError(t, err)

		entries, err := s.GetMany(ctx, []kv.Key{key("tx", "a"), key("tx", "b")})
		require.NoError(t, err)
		assert.Equal(t, stamp, entries[0].Versionstamp)
		assert.Equal(t, stamp, entries[1].Versionstamp)
	})

	t.Run("failed check applies nothing", func(t *testing.T) {
		_, err := s.Set(ctx, key("cf", "exists"), []byte("v"))
		require.NoError(t, err)

		_, err = s.Commit(ctx,
			kv.Check(key("cf", "exists"), ""),
			kv.Set(key("cf", "other"), []byte("x")),
		)
		require.ErrorIs(t, err, kv.ErrConflict)

		entry, err := s.Get(ctx, key("cf", "other"))
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("versionstamp check", func(t *testing.T) {
		stamp, err := s.Set(ctx, key("vs"), []byte("1"))
		require.NoError(t, err)

		_, err = s.Set(ctx, key("vs"), []byte("2"))
		require.NoError(t, err)

		_, err = s.Commit(ctx, kv.Check(key("vs"), stamp), kv.Set(key("vs"), []byte("3")))
		require.ErrorIs(t, err, kv.ErrConflict)

		current, err := s.Get(ctx, key("vs"))
		require.NoError(t, err)

		_, err = s.Commit(ctx, kv.Check(key("vs"), current.Versionstamp), kv.Set(key("vs"), []byte("3")))
		require.NoError(t, err)
	})

	t.Run("check on absent key with stamp fails", func(t *testing.T) {
		_, err := s.Commit(ctx, kv.Check(key("gone"), "00000000000000000001"), kv.Delete(key("gone")))

		require.ErrorIs(t, err, kv.ErrConflict)
	})

	t.Run("rejects empty and oversized commits", func(t *testing.T) {
		_, err := s.Commit(ctx)
		require.ErrorIs(t, err, kv.ErrInvalidCommit)

		ops := make([]kv.Op, kv.MaxCommitOps+1)
		for i := range ops {
			ops[i] = kv.Delete(key("big"))
		}

		_, err = s.Commit(ctx, ops...)
		require.ErrorIs(t, err, kv.ErrInvalidCommit)
	})

	t.Run("rejects invalid keys", func(t *testing.T) {
		_, err := s.Get(ctx, kv.Key{})
		require.ErrorIs(t, err, kv.ErrInvalidKey)

		_, err = s.Set(ctx, key("bad\x00segment"), []byte("x"))
		require.ErrorIs(t, err, kv.ErrInvalidKey)
	})

	t.Run("concurrent insert has one winner", func(t *testing.T) {
		const writers = 8

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)

		for i := range writers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := s.Commit(ctx,
					kv.Check(key("race"), ""),
					kv.Set(key("race"), []byte{byte(i)}),
				)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}
