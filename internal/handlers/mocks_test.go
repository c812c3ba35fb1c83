package handlers_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/shortener"
	"github.com/serroba/shortlinks/internal/store"
)

const testSession = "session-1"

var testProfile = shortener.Profile{Provider: "github", Subject: "42", Login: "octocat"}

// fakeProvider signs everyone in as testProfile with testSession.
type fakeProvider struct {
	callbackErr error
}

func (p *fakeProvider) SignIn(w http.ResponseWriter, r *http.Request) error {
	http.Redirect(w, r, "https://idp.example/authorize", http.StatusFound)

	return nil
}

func (p *fakeProvider) SignOut(w http.ResponseWriter, r *http.Request, onSignOut auth.SignOutFunc) error {
	if sessionID, ok := p.SessionID(r); ok {
		if err := onSignOut(r.Context(), sessionID); err != nil {
			return err
		}
	}

	http.Redirect(w, r, "/", http.StatusFound)

	return nil
}

func (p *fakeProvider) HandleCallback(w http.ResponseWriter, r *http.Request, onSuccess auth.SuccessFunc) error {
	if p.callbackErr != nil {
		return p.callbackErr
	}

	if err := onSuccess(r.Context(), testSession, testProfile); err != nil {
		return err
	}

	http.Redirect(w, r, "/", http.StatusFound)

	return nil
}

func (p *fakeProvider) SessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		return "", false
	}

	return cookie.Value, true
}

func (p *fakeProvider) CallbackPath() string {
	return "/oauth/callback"
}

// fakeRenderer records what it was asked to render.
type fakeRenderer struct {
	user  *shortener.User
	links []shortener.ShortLink
}

func (r *fakeRenderer) Home(user *shortener.User) ([]byte, error) {
	r.user = user

	return []byte("<h1>home</h1>"), nil
}

func (r *fakeRenderer) Links(user *shortener.User, links []shortener.ShortLink) ([]byte, error) {
	r.user = user
	r.links = links

	return []byte("<h1>links</h1>"), nil
}

// recordingPublishers captures published events.
type recordingPublishers struct {
	mu      sync.Mutex
	created []analytics.LinkCreatedEvent
	clicked []analytics.LinkClickedEvent
}

func (p *recordingPublishers) publishers() *analytics.Publishers {
	return &analytics.Publishers{
		LinkCreated: func(_ context.Context, e *analytics.LinkCreatedEvent) error {
			p.mu.Lock()
			defer p.mu.Unlock()

			p.created = append(p.created, *e)

			return nil
		},
		LinkClicked: func(_ context.Context, e *analytics.LinkClickedEvent) error {
			p.mu.Lock()
			defer p.mu.Unlock()

			p.clicked = append(p.clicked, *e)

			return nil
		},
	}
}

// contendedStore fails every commit with a conflict once contended is set.
type contendedStore struct {
	*store.MemoryStore
	contended atomic.Bool
}

func (s *contendedStore) Commit(ctx context.Context, ops ...kv.Op) (kv.Versionstamp, error) {
	if s.contended.Load() {
		return "", kv.ErrConflict
	}

	return s.MemoryStore.Commit(ctx, ops...)
}
