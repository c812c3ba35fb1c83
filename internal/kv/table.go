package kv

import (
	"context"
	"fmt"
	"iter"
)

// Item is a decoded table row. Key is relative to the table prefix.
type Item[V any] struct {
	Key          Key
	Value        V
	Versionstamp Versionstamp
}

// Table is a typed view over all keys below a fixed prefix.
type Table[V any] struct {
	store  Store
	codec  Codec
	prefix Key
}

// NewTable returns a view of store rooted at prefix.
func NewTable[V any](store Store, codec Codec, prefix ...string) *Table[V] {
	return &Table[V]{store: store, codec: codec, prefix: Key(prefix).Append()}
}

// Prefix returns a copy of the table prefix.
func (t *Table[V]) Prefix() Key {
	return t.prefix.Append()
}

func (t *Table[V]) fullKey(key []string) Key {
	return t.prefix.Append(key...)
}

func (t *Table[V]) decode(entry Entry) (Item[V], error) {
	var value V
	if err := t.codec.Unmarshal(entry.Value, &value); err != nil {
		return Item[V]{}, fmt.Errorf("decode %s: %w", entry.Key, err)
	}

	return Item[V]{
		Key:          entry.Key[len(t.prefix):].Append(),
		Value:        value,
		Versionstamp: entry.Versionstamp,
	}, nil
}

// Get returns the row at key, or nil when absent.
func (t *Table[V]) Get(ctx context.Context, key ...string) (*Item[V], error) {
	entry, err := t.store.Get(ctx, t.fullKey(key))
	if err != nil || entry == nil {
		return nil, err
	}

	item, err := t.decode(*entry)
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// GetMany returns one slot per key, in order; absent rows are nil.
func (t *Table[V]) GetMany(ctx context.Context, keys []Key) ([]*Item[V], error) {
	full := make([]Key, len(keys))
	for i, key := range keys {
		full[i] = t.fullKey(key)
	}

	entries, err := t.store.GetMany(ctx, full)
	if err != nil {
		return nil, err
	}

	items := make([]*Item[V], len(entries))

	for i, entry := range entries {
		if entry == nil {
			continue
		}

		item, err := t.decode(*entry)
		if err != nil {
			return nil, err
		}

		items[i] = &item
	}

	return items, nil
}

// Set encodes value and stores it at key.
func (t *Table[V]) Set(ctx context.Context, value V, key ...string) (Versionstamp, error) {
	data, err := t.codec.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", t.fullKey(key), err)
	}

	return t.store.Set(ctx, t.fullKey(key), data)
}

// Insert stores value only if key is absent. It returns ErrConflict otherwise.
func (t *Table[V]) Insert(ctx context.Context, value V, key ...string) (Versionstamp, error) {
	set, err := t.ProduceSet(value, key...)
	if err != nil {
		return "", err
	}

	return t.store.Commit(ctx, t.ProduceCheck("", key...), set)
}

// Delete removes the row at key.
func (t *Table[V]) Delete(ctx context.Context, key ...string) error {
	return t.store.Delete(ctx, t.fullKey(key))
}

// All lazily yields every row in key order. Iteration stops at the first error.
func (t *Table[V]) All(ctx context.Context) iter.Seq2[Item[V], error] {
	return func(yield func(Item[V], error) bool) {
		for entry, err := range t.store.List(ctx, t.prefix) {
			if err != nil {
				yield(Item[V]{}, err)

				return
			}

			item, err := t.decode(entry)
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// GetAll collects every row in key order.
func (t *Table[V]) GetAll(ctx context.Context) ([]Item[V], error) {
	var items []Item[V]

	for item, err := range t.All(ctx) {
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

// GetAllKeys returns the relative keys of every row without decoding values.
func (t *Table[V]) GetAllKeys(ctx context.Context) ([]Key, error) {
	var keys []Key

	for entry, err := range t.store.List(ctx, t.prefix) {
		if err != nil {
			return nil, err
		}

		keys = append(keys, entry.Key[len(t.prefix):].Append())
	}

	return keys, nil
}

// DeleteAll removes every row, in commits of at most MaxCommitOps deletions.
func (t *Table[V]) DeleteAll(ctx context.Context) (int, error) {
	keys, err := t.GetAllKeys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0

	for start := 0; start < len(keys); start += MaxCommitOps {
		end := min(start+MaxCommitOps, len(keys))
		ops := make([]Op, 0, end-start)

		for _, key := range keys[start:end] {
			ops = append(ops, t.ProduceDelete(key...))
		}

		if _, err := t.store.Commit(ctx, ops...); err != nil {
			return deleted, err
		}

		deleted += len(ops)
	}

	return deleted, nil
}

// ProduceSet returns a set operation for a later Commit.
func (t *Table[V]) ProduceSet(value V, key ...string) (Op, error) {
	data, err := t.codec.Marshal(value)
	if err != nil {
		return Op{}, fmt.Errorf("encode %s: %w", t.fullKey(key), err)
	}

	return Set(t.fullKey(key), data), nil
}

// ProduceDelete returns a delete operation for a later Commit.
func (t *Table[V]) ProduceDelete(key ...string) Op {
	return Delete(t.fullKey(key))
}

// ProduceCheck returns a check operation; an empty versionstamp asserts absence.
func (t *Table[V]) ProduceCheck(versionstamp Versionstamp, key ...string) Op {
	return Check(t.fullKey(key), versionstamp)
}
