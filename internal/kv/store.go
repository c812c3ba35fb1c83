package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// MaxCommitOps bounds the number of operations accepted by a single commit.
const MaxCommitOps = 64

var (
	// ErrConflict is returned by Commit when a check did not hold. Callers may retry with fresh reads.
	ErrConflict = errors.New("kv: check failed")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("kv: storage fault")

	// ErrInvalidKey is returned for keys a backend cannot store.
	ErrInvalidKey = errors.New("kv: invalid key")

	// ErrInvalidCommit is returned for malformed operation lists.
	ErrInvalidCommit = errors.New("kv: invalid commit")
)

// StorageError wraps a backend failure. It is not retryable without backoff.
type StorageError struct {
	Op  string
	Err error
}

// Fault wraps err as a storage fault for operation op. It returns nil for a nil err.
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}

	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("kv: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Versionstamp identifies one committed write of a key.
type Versionstamp string

// FormatVersionstamp renders a backend sequence number as a fixed-width, sortable stamp.
func FormatVersionstamp(seq uint64) Versionstamp {
	return Versionstamp(fmt.Sprintf("%020x", seq))
}

// Entry is a stored value together with its key and versionstamp.
type Entry struct {
	Key          Key
	Value        []byte
	Versionstamp Versionstamp
}

// Store is an ordered key-value store keyed by key paths.
//
// Absent keys are reported as a nil *Entry, never as an error.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	// GetMany returns one slot per key, in input order; absent keys yield nil slots.
	GetMany(ctx context.Context, keys []Key) ([]*Entry, error)
	Set(ctx context.Context, key Key, value []byte) (Versionstamp, error)
	// Delete succeeds for absent keys.
	Delete(ctx context.Context, key Key) error
	// List yields the strict descendants of prefix in key order. Each call re-scans.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]
	// Commit evaluates every check against one snapshot and, when all hold, applies the
	// writes atomically in order. A failed check returns ErrConflict and changes nothing.
	Commit(ctx context.Context, ops ...Op) (Versionstamp, error)
	Ping(ctx context.Context) error
}

// Collect drains a List sequence into a slice.
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var entries []Entry

	for entry, err := range seq {
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
