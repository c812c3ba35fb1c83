package store

import (
	"context"
	"iter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlinks/internal/kv"
)

// RedisCacheStore wraps a kv.Store with a Redis read-through cache for point reads.
//
// Writes go to the underlying store first and then evict the touched keys. Checks
// always run against the source of truth, so a stale cached entry can fail one
// commit but is gone before the caller retries.
type RedisCacheStore struct {
	store  kv.Store
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheStore creates a new Redis-cached store decorator.
func NewRedisCacheStore(store kv.Store, client *redis.Client, ttl time.Duration) *RedisCacheStore {
	return &RedisCacheStore{
		store:  store,
		client: client,
		prefix: "kvcache:",
		ttl:    ttl,
	}
}

func (r *RedisCacheStore) cacheKey(key kv.Key) string {
	return r.prefix + key.Encode()
}

// Get checks the cache first and populates it on a miss.
func (r *RedisCacheStore) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if entry, ok := r.getFromCache(ctx, key); ok {
		return entry, nil
	}

	entry, err := r.store.Get(ctx, key)
	if err != nil || entry == nil {
		return entry, err
	}

	r.cacheEntry(ctx, entry)

	return entry, nil
}

func (r *RedisCacheStore) GetMany(ctx context.Context, keys []kv.Key) ([]*kv.Entry, error) {
	return r.store.GetMany(ctx, keys)
}

func (r *RedisCacheStore) Set(ctx context.Context, key kv.Key, value []byte) (kv.Versionstamp, error) {
	return r.Commit(ctx, kv.Set(key, value))
}

func (r *RedisCacheStore) Delete(ctx context.Context, key kv.Key) error {
	_, err := r.Commit(ctx, kv.Delete(key))

	return err
}

func (r *RedisCacheStore) List(ctx context.Context, prefix kv.Key) iter.Seq2[kv.Entry, error] {
	return r.store.List(ctx, prefix)
}

// Commit evicts every key the ops touch, checks included, whether or not it succeeds.
// A check that failed against a stale cached versionstamp then reads fresh on retry.
func (r *RedisCacheStore) Commit(ctx context.Context, ops ...kv.Op) (kv.Versionstamp, error) {
	stamp, err := r.store.Commit(ctx, ops...)

	r.evict(ctx, ops)

	if err != nil {
		return "", err
	}

	return stamp, nil
}

func (r *RedisCacheStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return kv.Fault("ping cache", err)
	}

	return r.store.Ping(ctx)
}

func (r *RedisCacheStore) getFromCache(ctx context.Context, key kv.Key) (*kv.Entry, bool) {
	fields, err := r.client.HMGet(ctx, r.cacheKey(key), "v", "s").Result()
	if err != nil {
		return nil, false
	}

	entry := redisEntry(key, fields)

	return entry, entry != nil
}

// cacheEntry is best effort; a failed write only costs a later miss.
func (r *RedisCacheStore) cacheEntry(ctx context.Context, entry *kv.Entry) {
	pipe := r.client.Pipeline()
	key := r.cacheKey(entry.Key)

	pipe.HSet(ctx, key, "v", entry.Value, "s", string(entry.Versionstamp))

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	_, _ = pipe.Exec(ctx)
}

func (r *RedisCacheStore) evict(ctx context.Context, ops []kv.Op) {
	keys := make([]string, 0, len(ops))

	for _, op := range ops {
		keys = append(keys, r.cacheKey(op.Key))
	}

	if len(keys) > 0 {
		_ = r.client.Del(ctx, keys...).Err()
	}
}

var _ kv.Store = (*RedisCacheStore)(nil)
