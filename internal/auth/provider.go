// Package auth signs users in through an external identity provider and keeps the
// session id in a cookie. Session records themselves are owned by the caller.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/serroba/shortlinks/internal/shortener"
)

// SessionCookie holds the opaque session id.
const SessionCookie = "site-session"

var (
	// ErrInvalidState is returned when the OAuth state does not match the sign-in cookie.
	ErrInvalidState = errors.New("auth: invalid oauth state")

	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("auth: missing authorization code")
)

// SuccessFunc is invoked during the callback, before the response is written.
type SuccessFunc func(ctx context.Context, sessionID string, profile shortener.Profile) error

// SignOutFunc is invoked with the current session id, if any, before the cookie is cleared.
type SignOutFunc func(ctx context.Context, sessionID string) error

// Provider is an identity provider flow.
type Provider interface {
	SignIn(w http.ResponseWriter, r *http.Request) error
	SignOut(w http.ResponseWriter, r *http.Request, onSignOut SignOutFunc) error
	HandleCallback(w http.ResponseWriter, r *http.Request, onSuccess SuccessFunc) error
	// SessionID returns the session id carried by the request.
	SessionID(r *http.Request) (string, bool)
	CallbackPath() string
}
