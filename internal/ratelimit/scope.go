package ratelimit

import (
	"net/http"
	"strings"
)

// Scope categorizes a request for rate limiting purposes.
// Different scopes can have different rate limits applied.
type Scope string

const (
	// ScopeGlobal applies to all requests regardless of type.
	ScopeGlobal Scope = "global"
	// ScopeRead applies to read operations (GET, HEAD, OPTIONS).
	ScopeRead Scope = "read"
	// ScopeWrite applies to write operations (POST, PUT, PATCH, DELETE).
	ScopeWrite Scope = "write"
	// ScopeAuth applies to sign-in, sign-out and the OAuth callback.
	ScopeAuth Scope = "auth"
)

// ScopeResolver determines which scopes apply to a given request.
type ScopeResolver interface {
	Resolve(r *http.Request) []Scope
}

// MethodScopeResolver resolves scopes based on HTTP method.
// GET, HEAD, OPTIONS are classified as read operations.
// All other methods are classified as write operations.
type MethodScopeResolver struct{}

// NewMethodScopeResolver creates a new method-based scope resolver.
func NewMethodScopeResolver() *MethodScopeResolver {
	return &MethodScopeResolver{}
}

func (MethodScopeResolver) Resolve(r *http.Request) []Scope {
	scopes := []Scope{ScopeGlobal}

	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		scopes = append(scopes, ScopeRead)
	default:
		scopes = append(scopes, ScopeWrite)
	}

	return scopes
}

// Route overrides scope detection for requests whose path starts with Prefix.
type Route struct {
	Prefix   string
	Scope    Scope
	Disabled bool
}

// RouteScopeResolver checks path routes in order, then falls back to method-based detection.
type RouteScopeResolver struct {
	routes   []Route
	fallback MethodScopeResolver
}

// NewRouteScopeResolver creates a resolver with the given route overrides.
func NewRouteScopeResolver(routes ...Route) *RouteScopeResolver {
	return &RouteScopeResolver{routes: routes}
}

// Resolve returns nil for disabled routes.
func (r *RouteScopeResolver) Resolve(req *http.Request) []Scope {
	for _, route := range r.routes {
		if !strings.HasPrefix(req.URL.Path, route.Prefix) {
			continue
		}

		if route.Disabled {
			return nil
		}

		return []Scope{ScopeGlobal, route.Scope}
	}

	return r.fallback.Resolve(req)
}
