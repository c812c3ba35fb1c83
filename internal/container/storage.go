package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/store"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

// RedisClient owns the shared Redis connection pool.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// PostgresPool owns the shared Postgres connection pool.
type PostgresPool struct {
	*pgxpool.Pool
}

func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*PostgresPool, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		return &PostgresPool{Pool: pool}, nil
	})
}

// StorePackage provides the kv.Store selected by Options.StoreBackend and the value codec.
func StorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (kv.Codec, error) {
		return kv.CodecByName(do.MustInvoke[*Options](i).ValueCodec)
	})

	do.Provide(injector, func(i *do.Injector) (kv.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		switch opts.StoreBackend {
		case "", "memory":
			logger.Info("using in-memory store")

			return store.NewMemoryStore(), nil
		case "redis":
			logger.Info("using redis store", zap.String("addr", opts.RedisAddr))

			return store.NewRedisStore(do.MustInvoke[*RedisClient](i).Client), nil
		case "postgres":
			return newPostgresStore(i, opts, logger)
		default:
			return nil, fmt.Errorf("unknown store backend %q", opts.StoreBackend)
		}
	})
}

func newPostgresStore(i *do.Injector, opts *Options, logger *zap.Logger) (kv.Store, error) {
	pg := store.NewPostgresStore(do.MustInvoke[*PostgresPool](i).Pool)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := pg.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	logger.Info("using postgres store")

	if opts.CacheSeconds <= 0 {
		return pg, nil
	}

	ttl := time.Duration(opts.CacheSeconds) * time.Second
	logger.Info("caching reads in redis", zap.Duration("ttl", ttl))

	return store.NewRedisCacheStore(pg, do.MustInvoke[*RedisClient](i).Client, ttl), nil
}
