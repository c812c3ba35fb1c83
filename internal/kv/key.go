package kv

import (
	"fmt"
	"slices"
	"strings"
)

// separator joins key segments in backends that need a flat string key.
// It sorts below every other byte, so joined keys keep key-path order.
const separator = "\x00"

// Key is an ordered tuple of string segments identifying a stored value.
type Key []string

// Append returns a new key made of k followed by segments.
func (k Key) Append(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)

	return append(out, segments...)
}

// HasPrefix reports whether prefix is a strict ancestor of k.
func (k Key) HasPrefix(prefix Key) bool {
	return len(k) > len(prefix) && slices.Equal(k[:len(prefix)], prefix)
}

// Compare orders keys segment by segment; a key sorts before its descendants.
func (k Key) Compare(other Key) int {
	return slices.Compare(k, other)
}

// Validate rejects keys a backend cannot represent: the empty key and segments
// holding the NUL separator. Empty segments are fine.
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	for _, segment := range k {
		if strings.Contains(segment, separator) {
			return fmt.Errorf("%w: segment %q contains a NUL byte", ErrInvalidKey, segment)
		}
	}

	return nil
}

// Encode flattens the key into a single string that preserves ordering.
func (k Key) Encode() string {
	return strings.Join(k, separator)
}

// DecodeKey reverses Encode.
func DecodeKey(encoded string) Key {
	return strings.Split(encoded, separator)
}

func (k Key) String() string {
	return strings.Join(k, "/")
}
