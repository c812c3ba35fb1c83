package kv

import "fmt"

// OpKind tags the variant held by an Op.
type OpKind uint8

const (
	OpCheck OpKind = iota + 1
	OpSet
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCheck:
		return "check"
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", k)
	}
}

// Op is one operation of an atomic commit.
//
// Value is only meaningful for OpSet and Versionstamp only for OpCheck. A check with
// an empty Versionstamp asserts that the key does not exist.
type Op struct {
	Kind         OpKind
	Key          Key
	Value        []byte
	Versionstamp Versionstamp
}

// Check asserts that key currently holds versionstamp, or is absent when versionstamp is empty.
func Check(key Key, versionstamp Versionstamp) Op {
	return Op{Kind: OpCheck, Key: key, Versionstamp: versionstamp}
}

// Set writes value under key.
func Set(key Key, value []byte) Op {
	return Op{Kind: OpSet, Key: key, Value: value}
}

// Delete removes key.
func Delete(key Key) Op {
	return Op{Kind: OpDelete, Key: key}
}

// Holds reports whether a check op is satisfied by the current entry (nil when absent).
func (o Op) Holds(current *Entry) bool {
	if o.Versionstamp == "" {
		return current == nil
	}

	return current != nil && current.Versionstamp == o.Versionstamp
}

// ValidateOps rejects empty, oversized or malformed commits before they reach a backend.
func ValidateOps(ops []Op) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: no operations", ErrInvalidCommit)
	}

	if len(ops) > MaxCommitOps {
		return fmt.Errorf("%w: %d operations exceeds limit of %d", ErrInvalidCommit, len(ops), MaxCommitOps)
	}

	for i, op := range ops {
		switch op.Kind {
		case OpCheck, OpSet, OpDelete:
		default:
			return fmt.Errorf("%w: operation %d has unknown kind %s", ErrInvalidCommit, i, op.Kind)
		}

		if err := op.Key.Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}

	return nil
}
