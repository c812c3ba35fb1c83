package store

import (
	"context"
	"errors"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlinks/internal/kv"
)

const (
	postgresListPage   = 256
	postgresTxAttempts = 16
)

// Schema creates the entry table and the commit sequence. Keys are text arrays in
// the "C" collation so ORDER BY key matches byte-wise key-path order.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key          TEXT[] COLLATE "C" PRIMARY KEY,
	value        BYTEA  NOT NULL,
	versionstamp BIGINT NOT NULL
);
CREATE SEQUENCE IF NOT EXISTS kv_versionstamp;
`

// PostgresStore is a PostgreSQL implementation of kv.Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema. It is idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)

	return kv.Fault("migrate", err)
}

func (p *PostgresStore) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT value, versionstamp FROM kv_entries WHERE key = $1`

	entry, err := scanEntry(key, p.pool.QueryRow(ctx, query, []string(key)))
	if err != nil {
		return nil, kv.Fault("get", err)
	}

	return entry, nil
}

func (p *PostgresStore) GetMany(ctx context.Context, keys []kv.Key) ([]*kv.Entry, error) {
	for _, key := range keys {
		if err := key.Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]*kv.Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(`SELECT value, versionstamp FROM kv_entries WHERE key = $1`, []string(key))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i, key := range keys {
		entry, err := scanEntry(key, results.QueryRow())
		if err != nil {
			return nil, kv.Fault("get many", err)
		}

		out[i] = entry
	}

	return out, nil
}

func (p *PostgresStore) Set(ctx context.Context, key kv.Key, value []byte) (kv.Versionstamp, error) {
	return p.Commit(ctx, kv.Set(key, value))
}

func (p *PostgresStore) Delete(ctx context.Context, key kv.Key) error {
	_, err := p.Commit(ctx, kv.Delete(key))

	return err
}

// List reads strict descendants of prefix in keyset-paginated pages.
func (p *PostgresStore) List(ctx context.Context, prefix kv.Key) iter.Seq2[kv.Entry, error] {
	return func(yield func(kv.Entry, error) bool) {
		query := `
			SELECT key, value, versionstamp
			FROM kv_entries
			WHERE cardinality(key) > $1
			  AND key[1:$1] = $2
			  AND ($3::TEXT[] IS NULL OR key > $3)
			ORDER BY key
			LIMIT $4
		`

		var after []string

		for {
			rows, err := p.pool.Query(ctx, query, len(prefix), []string(prefix.Append()), after, postgresListPage)
			if err != nil {
				yield(kv.Entry{}, kv.Fault("list", err))

				return
			}

			page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (kv.Entry, error) {
				var (
					key   []string
					entry kv.Entry
					seq   int64
				)

				if err := row.Scan(&key, &entry.Value, &seq); err != nil {
					return kv.Entry{}, err
				}

				entry.Key = key
				entry.Versionstamp = kv.FormatVersionstamp(uint64(seq))

				return entry, nil
			})
			if err != nil {
				yield(kv.Entry{}, kv.Fault("list", err))

				return
			}

			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
			}

			if len(page) < postgresListPage {
				return
			}

			after = page[len(page)-1].Key
		}
	}
}

// Commit runs checks and writes in one serializable transaction, retrying on
// serialization failures and deadlocks.
func (p *PostgresStore) Commit(ctx context.Context, ops ...kv.Op) (kv.Versionstamp, error) {
	if err := kv.ValidateOps(ops); err != nil {
		return "", err
	}

	var stamp kv.Versionstamp

	txf := func(tx pgx.Tx) error {
		for _, op := range ops {
			if op.Kind != kv.OpCheck {
				continue
			}

			current, err := scanEntry(op.Key, tx.QueryRow(ctx,
				`SELECT NULL::BYTEA, versionstamp FROM kv_entries WHERE key = $1`, []string(op.Key)))
			if err != nil {
				return err
			}

			if !op.Holds(current) {
				return kv.ErrConflict
			}
		}

		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('kv_versionstamp')`).Scan(&seq); err != nil {
			return err
		}

		stamp = kv.FormatVersionstamp(uint64(seq))

		for _, op := range ops {
			var err error

			switch op.Kind {
			case kv.OpSet:
				_, err = tx.Exec(ctx, `
					INSERT INTO kv_entries (key, value, versionstamp)
					VALUES ($1, $2, $3)
					ON CONFLICT (key) DO UPDATE
					SET value = EXCLUDED.value, versionstamp = EXCLUDED.versionstamp
				`, []string(op.Key), op.Value, seq)
			case kv.OpDelete:
				_, err = tx.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, []string(op.Key))
			case kv.OpCheck:
			}

			if err != nil {
				return err
			}
		}

		return nil
	}

	for range postgresTxAttempts {
		err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, txf)

		switch {
		case err == nil:
			return stamp, nil
		case errors.Is(err, kv.ErrConflict):
			return "", err
		case isSerializationFailure(err):
			continue
		default:
			return "", kv.Fault("commit", err)
		}
	}

	return "", kv.ErrConflict
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return kv.Fault("ping", p.pool.Ping(ctx))
}

// scanEntry maps pgx.ErrNoRows to a nil entry.
func scanEntry(key kv.Key, row pgx.Row) (*kv.Entry, error) {
	var (
		value []byte
		seq   int64
	)

	if err := row.Scan(&value, &seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &kv.Entry{
		Key:          key.Append(),
		Value:        value,
		Versionstamp: kv.FormatVersionstamp(uint64(seq)),
	}, nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

var _ kv.Store = (*PostgresStore)(nil)
