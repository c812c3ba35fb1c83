package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/shortlinks/internal/shortener"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	stateCookie    = "oauth-state"
	stateTTL       = 10 * time.Minute
	sessionTTL     = 30 * 24 * time.Hour
	githubUserURL  = "https://api.github.com/user"
	githubProvider = "github"
)

// GitHubConfig configures GitHubProvider. Endpoint, UserURL and HTTPClient default to GitHub's.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CookieSecure bool
	Endpoint     oauth2.Endpoint
	UserURL      string
	HTTPClient   *http.Client
}

// GitHubProvider signs users in with GitHub OAuth2.
type GitHubProvider struct {
	oauth        *oauth2.Config
	userURL      string
	client       *http.Client
	cookieSecure bool
	callbackPath string
}

// NewGitHubProvider creates a GitHub provider.
func NewGitHubProvider(cfg GitHubConfig) (*GitHubProvider, error) {
	callback, err := url.Parse(cfg.RedirectURL)
	if err != nil || callback.Path == "" {
		return nil, fmt.Errorf("auth: invalid redirect url %q", cfg.RedirectURL)
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}

	userURL := cfg.UserURL
	if userURL == "" {
		userURL = githubUserURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &GitHubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
		},
		userURL:      userURL,
		client:       client,
		cookieSecure: cfg.CookieSecure,
		callbackPath: callback.Path,
	}, nil
}

func (p *GitHubProvider) CallbackPath() string {
	return p.callbackPath
}

// SignIn stores a random state in a cookie and redirects to GitHub.
func (p *GitHubProvider) SignIn(w http.ResponseWriter, r *http.Request) error {
	state := uuid.NewString()

	http.SetCookie(w, p.cookie(stateCookie, state, stateTTL))
	http.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusFound)

	return nil
}

// HandleCallback verifies state, exchanges the code, fetches the profile, calls
// onSuccess with a fresh session id and sets the session cookie.
func (p *GitHubProvider) HandleCallback(w http.ResponseWriter, r *http.Request, onSuccess SuccessFunc) error {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		return ErrInvalidState
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		return ErrMissingCode
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("auth: exchange code: %w", err)
	}

	profile, err := p.fetchProfile(ctx, token)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()

	if err := onSuccess(r.Context(), sessionID, profile); err != nil {
		return err
	}

	http.SetCookie(w, p.cookie(stateCookie, "", -1))
	http.SetCookie(w, p.cookie(SessionCookie, sessionID, sessionTTL))
	http.Redirect(w, r, "/", http.StatusFound)

	return nil
}

// SignOut calls onSignOut for the current session, clears the cookie and redirects home.
func (p *GitHubProvider) SignOut(w http.ResponseWriter, r *http.Request, onSignOut SignOutFunc) error {
	if sessionID, ok := p.SessionID(r); ok && onSignOut != nil {
		if err := onSignOut(r.Context(), sessionID); err != nil {
			return err
		}
	}

	http.SetCookie(w, p.cookie(SessionCookie, "", -1))
	http.Redirect(w, r, "/", http.StatusFound)

	return nil
}

func (p *GitHubProvider) SessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	return cookie.Value, true
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

func (p *GitHubProvider) fetchProfile(ctx context.Context, token *oauth2.Token) (shortener.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return shortener.Profile{}, err
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return shortener.Profile{}, fmt.Errorf("auth: fetch github user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return shortener.Profile{}, fmt.Errorf("auth: fetch github user: status %d", resp.StatusCode)
	}

	var user githubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return shortener.Profile{}, fmt.Errorf("auth: decode github user: %w", err)
	}

	if user.ID == 0 {
		return shortener.Profile{}, errors.New("auth: github user has no id")
	}

	return shortener.Profile{
		Provider:  githubProvider,
		Subject:   strconv.FormatInt(user.ID, 10),
		Login:     user.Login,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		HTMLURL:   user.HTMLURL,
	}, nil
}

// cookie builds a path-wide cookie; a negative ttl deletes it.
func (p *GitHubProvider) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}

	return c
}

var _ Provider = (*GitHubProvider)(nil)
