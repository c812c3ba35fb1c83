package shortener

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
)

// CodeStrategy derives the short code for a long URL.
type CodeStrategy interface {
	Code(longURL, ownerID string) string
	// Deterministic reports whether the same input always yields the same code.
	Deterministic() bool
}

// CodeGenerator generates random short codes.
type CodeGenerator func() string

// HashCode returns the content-addressed code for s: the first 8 hex characters of
// its SHA-256 digest, base64url encoded without padding.
func HashCode(s string) string {
	sum := sha256.Sum256([]byte(s))

	return base64.RawURLEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])[:8]))
}

// HashStrategy gives every owner the same code for the same URL.
type HashStrategy struct{}

func (HashStrategy) Code(longURL, _ string) string { return HashCode(longURL) }

func (HashStrategy) Deterministic() bool { return true }

// OwnerHashStrategy scopes the content hash by owner, so owners never share codes.
type OwnerHashStrategy struct{}

func (OwnerHashStrategy) Code(longURL, ownerID string) string {
	return HashCode(ownerID + "\n" + longURL)
}

func (OwnerHashStrategy) Deterministic() bool { return true }

// TokenStrategy always generates a new code for each URL.
type TokenStrategy struct {
	generateCode CodeGenerator
}

// NewTokenStrategy creates a new token-based strategy.
func NewTokenStrategy(generator CodeGenerator) *TokenStrategy {
	return &TokenStrategy{generateCode: generator}
}

func (s *TokenStrategy) Code(string, string) string { return s.generateCode() }

func (*TokenStrategy) Deterministic() bool { return false }

// StrategyName identifies a configured code strategy.
type StrategyName string

const (
	StrategyHash      StrategyName = "hash"
	StrategyOwnerHash StrategyName = "owner-hash"
	StrategyToken     StrategyName = "token"
)

// NewStrategy resolves a strategy by name. generator is only used by StrategyToken.
func NewStrategy(name StrategyName, generator CodeGenerator) (CodeStrategy, error) {
	switch name {
	case "", StrategyHash:
		return HashStrategy{}, nil
	case StrategyOwnerHash:
		return OwnerHashStrategy{}, nil
	case StrategyToken:
		if generator == nil {
			return nil, fmt.Errorf("strategy %q requires a code generator", name)
		}

		return NewTokenStrategy(generator), nil
	default:
		return nil, fmt.Errorf("unknown code strategy %q", name)
	}
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}
