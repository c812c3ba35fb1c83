package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/dispatch"
	"github.com/serroba/shortlinks/internal/shortener"
	"go.uber.org/zap"
)

// GlobalState is shared by every request served by the router.
type GlobalState struct {
	ServedRequests uint64
	LastRequestAt  time.Time
}

// RequestState is private to one request. CurrentUser is nil for anonymous visitors.
type RequestState struct {
	CurrentUser *shortener.User
	SessionID   string
}

// Router is the dispatcher type the site is served by.
type Router = dispatch.Router[GlobalState, RequestState]

// NewRouter creates an empty site router with zeroed state.
func NewRouter(logger *zap.Logger) *Router {
	return dispatch.New(GlobalState{}, RequestState{}, logger)
}

// CountRequests is a global middleware that tracks served requests.
func CountRequests(now func() time.Time) dispatch.Middleware[GlobalState] {
	return func(_ context.Context, _ GlobalState, _ *http.Request) (dispatch.Update[GlobalState], error) {
		at := now()

		return func(s GlobalState) GlobalState {
			s.ServedRequests++
			s.LastRequestAt = at

			return s
		}, nil
	}
}

// CurrentUser is a request middleware that resolves the session cookie into the signed-in user.
// Unknown or dangling sessions leave the request anonymous.
func CurrentUser(links *shortener.Service, provider auth.Provider) dispatch.Middleware[RequestState] {
	return func(ctx context.Context, _ RequestState, r *http.Request) (dispatch.Update[RequestState], error) {
		sessionID, ok := provider.SessionID(r)
		if !ok {
			return nil, nil
		}

		user, err := links.SessionUser(ctx, sessionID)
		if errors.Is(err, shortener.ErrSessionNotFound) || errors.Is(err, shortener.ErrUserNotFound) {
			return nil, nil
		}

		if err != nil {
			return nil, err
		}

		return func(s RequestState) RequestState {
			s.CurrentUser = user
			s.SessionID = sessionID

			return s
		}, nil
	}
}
