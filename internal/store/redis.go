package store

import (
	"context"
	"errors"
	"iter"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlinks/internal/kv"
)

const (
	redisListPage   = 256
	redisTxAttempts = 16
)

// RedisStore is a Redis implementation of kv.Store.
//
// Each entry lives in a hash holding its value and versionstamp. A sorted set with
// equal scores indexes encoded keys so prefix scans come back in key order.
type RedisStore struct {
	client     *redis.Client
	prefix     string // "kv:e:" for encoded key -> entry hash
	indexKey   string // "kv:keys" lexicographic key index
	counterKey string // "kv:versionstamp" commit sequence
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     "kv:e:",
		indexKey:   "kv:keys",
		counterKey: "kv:versionstamp",
	}
}

func (r *RedisStore) entryKey(key kv.Key) string {
	return r.prefix + key.Encode()
}

func (r *RedisStore) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	fields, err := r.client.HMGet(ctx, r.entryKey(key), "v", "s").Result()
	if err != nil {
		return nil, kv.Fault("get", err)
	}

	return redisEntry(key, fields), nil
}

func (r *RedisStore) GetMany(ctx context.Context, keys []kv.Key) ([]*kv.Entry, error) {
	for _, key := range keys {
		if err := key.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]*kv.Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	cmds := make([]*redis.SliceCmd, len(keys))

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HMGet(ctx, r.entryKey(key), "v", "s")
		}

		return nil
	})
	if err != nil {
		return nil, kv.Fault("get many", err)
	}

	for i, cmd := range cmds {
		out[i] = redisEntry(keys[i], cmd.Val())
	}

	return out, nil
}

func (r *RedisStore) Set(ctx context.Context, key kv.Key, value []byte) (kv.Versionstamp, error) {
	return r.Commit(ctx, kv.Set(key, value))
}

func (r *RedisStore) Delete(ctx context.Context, key kv.Key) error {
	_, err := r.Commit(ctx, kv.Delete(key))

	return err
}

// List pages through the key index and fetches each page of entries in one pipeline.
// Keys removed between the index read and the fetch are skipped.
func (r *RedisStore) List(ctx context.Context, prefix kv.Key) iter.Seq2[kv.Entry, error] {
	return func(yield func(kv.Entry, error) bool) {
		lower, upper := "-", "+"

		if len(prefix) > 0 {
			enc := prefix.Encode()
			lower, upper = "["+enc+"\x00", "("+enc+"\x01"
		}

		for {
			members, err := r.client.ZRangeByLex(ctx, r.indexKey, &redis.ZRangeBy{
				Min:   lower,
				Max:   upper,
				Count: redisListPage,
			}).Result()
			if err != nil {
				yield(kv.Entry{}, kv.Fault("list", err))

				return
			}

			if len(members) == 0 {
				return
			}

			keys := make([]kv.Key, len(members))
			for i, member := range members {
				keys[i] = kv.DecodeKey(member)
			}

			entries, err := r.GetMany(ctx, keys)
			if err != nil {
				yield(kv.Entry{}, err)

				return
			}

			for _, entry := range entries {
				if entry != nil && !yield(*entry, nil) {
					return
				}
			}

			if len(members) < redisListPage {
				return
			}

			lower = "(" + members[len(members)-1]
		}
	}
}

// Commit watches every touched key, evaluates checks, then applies the writes in a
// MULTI block. A concurrent write to a watched key aborts the attempt and it is retried.
func (r *RedisStore) Commit(ctx context.Context, ops ...kv.Op) (kv.Versionstamp, error) {
	if err := kv.ValidateOps(ops); err != nil {
		return "", err
	}

	watched := make([]string, 0, len(ops))
	for _, op := range ops {
		watched = append(watched, r.entryKey(op.Key))
	}

	var stamp kv.Versionstamp

	txf := func(tx *redis.Tx) error {
		for _, op := range ops {
			if op.Kind != kv.OpCheck {
				continue
			}

			current, err := tx.HGet(ctx, r.entryKey(op.Key), "s").Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			var entry *kv.Entry
			if current != "" {
				entry = &kv.Entry{Versionstamp: kv.Versionstamp(current)}
			}

			if !op.Holds(entry) {
				return kv.ErrConflict
			}
		}

		seq, err := tx.Incr(ctx, r.counterKey).Uint64()
		if err != nil {
			return err
		}

		stamp = kv.FormatVersionstamp(seq)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range ops {
				enc := op.Key.Encode()

				switch op.Kind {
				case kv.OpSet:
					pipe.HSet(ctx, r.prefix+enc, "v", op.Value, "s", string(stamp))
					pipe.ZAdd(ctx, r.indexKey, redis.Z{Member: enc})
				case kv.OpDelete:
					pipe.Del(ctx, r.prefix+enc)
					pipe.ZRem(ctx, r.indexKey, enc)
				case kv.OpCheck:
				}
			}

			return nil
		})

		return err
	}

	for range redisTxAttempts {
		err := r.client.Watch(ctx, txf, watched...)

		switch {
		case err == nil:
			return stamp, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, kv.ErrConflict):
			return "", err
		default:
			return "", kv.Fault("commit", err)
		}
	}

	return "", kv.ErrConflict
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return kv.Fault("ping", r.client.Ping(ctx).Err())
}

func redisEntry(key kv.Key, fields []any) *kv.Entry {
	if len(fields) != 2 {
		return nil
	}

	stamp, ok := fields[1].(string)
	if !ok || stamp == "" {
		return nil
	}

	value, _ := fields[0].(string)

	return &kv.Entry{
		Key:          key.Append(),
		Value:        []byte(value),
		Versionstamp: kv.Versionstamp(stamp),
	}
}

var _ kv.Store = (*RedisStore)(nil)
