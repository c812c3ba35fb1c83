package store

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/serroba/shortlinks/internal/kv"
)

type memoryEntry struct {
	key          kv.Key
	value        []byte
	versionstamp kv.Versionstamp
}

// MemoryStore is an in-memory implementation of kv.Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry // encoded key -> entry
	version uint64
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, key kv.Key) (*kv.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lookup(key), nil
}

func (m *MemoryStore) GetMany(_ context.Context, keys []kv.Key) ([]*kv.Entry, error) {
	for _, key := range keys {
		if err := key.Validate(); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*kv.Entry, len(keys))
	for i, key := range keys {
		out[i] = m.lookup(key)
	}

	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key kv.Key, value []byte) (kv.Versionstamp, error) {
	return m.Commit(ctx, kv.Set(key, value))
}

func (m *MemoryStore) Delete(ctx context.Context, key kv.Key) error {
	_, err := m.Commit(ctx, kv.Delete(key))

	return err
}

// List snapshots matching entries under the read lock, then yields them without holding it.
func (m *MemoryStore) List(_ context.Context, prefix kv.Key) iter.Seq2[kv.Entry, error] {
	return func(yield func(kv.Entry, error) bool) {
		m.mu.RLock()

		matches := make([]kv.Entry, 0)

		for _, e := range m.entries {
			if e.key.HasPrefix(prefix) {
				matches = append(matches, copyEntry(e))
			}
		}

		m.mu.RUnlock()

		slices.SortFunc(matches, func(a, b kv.Entry) int {
			return a.Key.Compare(b.Key)
		})

		for _, e := range matches {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *MemoryStore) Commit(_ context.Context, ops ...kv.Op) (kv.Versionstamp, error) {
	if err := kv.ValidateOps(ops); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		if op.Kind == kv.OpCheck && !op.Holds(m.lookup(op.Key)) {
			return "", kv.ErrConflict
		}
	}

	m.version++
	stamp := kv.FormatVersionstamp(m.version)

	for _, op := range ops {
		switch op.Kind {
		case kv.OpSet:
			m.entries[op.Key.Encode()] = memoryEntry{
				key:          slices.Clone(op.Key),
				value:        slices.Clone(op.Value),
				versionstamp: stamp,
			}
		case kv.OpDelete:
			delete(m.entries, op.Key.Encode())
		case kv.OpCheck:
		}
	}

	return stamp, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// lookup must be called with m.mu held.
func (m *MemoryStore) lookup(key kv.Key) *kv.Entry {
	e, ok := m.entries[key.Encode()]
	if !ok {
		return nil
	}

	entry := copyEntry(e)

	return &entry
}

func copyEntry(e memoryEntry) kv.Entry {
	return kv.Entry{
		Key:          slices.Clone(e.key),
		Value:        slices.Clone(e.value),
		Versionstamp: e.versionstamp,
	}
}

var _ kv.Store = (*MemoryStore)(nil)
