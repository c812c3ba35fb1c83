package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/dispatch"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/middleware"
	"github.com/serroba/shortlinks/internal/render"
	"github.com/serroba/shortlinks/internal/shortener"
	"go.uber.org/zap"
)

// Web serves the HTML site, the sign-in flow and short link redirects.
type Web struct {
	links      *shortener.Service
	provider   auth.Provider
	renderer   render.Renderer
	publishers *analytics.Publishers
	strategy   shortener.StrategyName
	now        func() time.Time
	logger     *zap.Logger
}

// NewWeb creates the site handlers. strategy is reported in link created events.
func NewWeb(
	links *shortener.Service,
	provider auth.Provider,
	renderer render.Renderer,
	publishers *analytics.Publishers,
	strategy shortener.StrategyName,
	logger *zap.Logger,
) *Web {
	return &Web{
		links:      links,
		provider:   provider,
		renderer:   renderer,
		publishers: publishers,
		strategy:   strategy,
		now:        time.Now,
		logger:     logger,
	}
}

// Register adds the site routes to router. Order matters: /:shortCode matches last.
func (h *Web) Register(router *Router) {
	session := CurrentUser(h.links, h.provider)

	router.UseGlobal(CountRequests(h.now))

	router.HandleWithGlobal(http.MethodGet, "/oauth/signin", h.SignIn)
	router.HandleWithGlobal(http.MethodGet, "/oauth/signout", h.SignOut)
	router.HandleWithGlobal(http.MethodGet, h.provider.CallbackPath(), h.Callback)

	router.Get("/", h.Home, session)
	router.Get("/links", h.Links, session)
	router.Post("/links", h.CreateLink, session)
	router.Post("/links/delete/:shortCode", h.DeleteLink, session)
	router.Get("/:shortCode", h.Redirect)
}

func (h *Web) SignIn(w http.ResponseWriter, r *http.Request, c dispatch.Context[GlobalState]) error {
	h.logger.Debug("sign in", zap.Uint64("served", c.State.ServedRequests))

	return h.provider.SignIn(w, r)
}

func (h *Web) SignOut(w http.ResponseWriter, r *http.Request, _ dispatch.Context[GlobalState]) error {
	return h.provider.SignOut(w, r, h.links.RemoveSession)
}

func (h *Web) Callback(w http.ResponseWriter, r *http.Request, _ dispatch.Context[GlobalState]) error {
	err := h.provider.HandleCallback(w, r, func(ctx context.Context, sessionID string, profile shortener.Profile) error {
		_, err := h.links.CreateSession(ctx, sessionID, profile)

		return err
	})
	if errors.Is(err, auth.ErrInvalidState) || errors.Is(err, auth.ErrMissingCode) {
		h.logger.Warn("rejected oauth callback", zap.Error(err))

		return dispatch.Error(w, http.StatusBadRequest, "Invalid OAuth callback")
	}

	return err
}

func (h *Web) Home(w http.ResponseWriter, _ *http.Request, c dispatch.Context[RequestState]) error {
	page, err := h.renderer.Home(c.State.CurrentUser)
	if err != nil {
		return err
	}

	return dispatch.HTML(w, http.StatusOK, page)
}

func (h *Web) Links(w http.ResponseWriter, r *http.Request, c dispatch.Context[RequestState]) error {
	user := c.State.CurrentUser
	if user == nil {
		return dispatch.Redirect(w, "/")
	}

	links, err := h.links.ListLinks(r.Context(), user.ID)
	if err != nil {
		return err
	}

	page, err := h.renderer.Links(user, links)
	if err != nil {
		return err
	}

	return dispatch.HTML(w, http.StatusOK, page)
}

func (h *Web) CreateLink(w http.ResponseWriter, r *http.Request, c dispatch.Context[RequestState]) error {
	user := c.State.CurrentUser
	if user == nil {
		return dispatch.Error(w, http.StatusUnauthorized, "Unauthorized")
	}

	longURL := r.PostFormValue("longUrl")
	if longURL == "" {
		return dispatch.Error(w, http.StatusBadRequest, "Long URL is required")
	}

	link, created, err := h.links.CreateLink(r.Context(), longURL, user.ID)

	switch {
	case errors.Is(err, shortener.ErrInvalidURL):
		return dispatch.Error(w, http.StatusBadRequest, "Invalid URL provided")
	case errors.Is(err, shortener.ErrCodeTaken):
		return dispatch.Error(w, http.StatusConflict, "Short link already taken")
	case err != nil:
		return err
	}

	if created {
		meta := middleware.RequestMetaFromContext(r.Context())
		event := &analytics.LinkCreatedEvent{
			Code:      link.ShortCode,
			LongURL:   link.LongURL,
			OwnerID:   link.OwnerID,
			Strategy:  string(h.strategy),
			CreatedAt: link.CreatedAt,
			ClientIP:  meta.ClientIP,
			UserAgent: meta.UserAgent,
		}

		if err := h.publishers.LinkCreated(r.Context(), event); err != nil {
			h.logger.Error("failed to publish link created event",
				zap.String("code", event.Code),
				zap.Error(err),
			)
		}
	}

	return dispatch.Redirect(w, "/links")
}

func (h *Web) DeleteLink(w http.ResponseWriter, r *http.Request, c dispatch.Context[RequestState]) error {
	user := c.State.CurrentUser
	if user == nil {
		return dispatch.Error(w, http.StatusUnauthorized, "Unauthorized")
	}

	if !h.links.TryDeleteLink(r.Context(), user.ID, c.Params["shortCode"]) {
		return dispatch.Error(w, http.StatusInternalServerError, "Failed to delete short link")
	}

	return dispatch.Redirect(w, "/links")
}

func (h *Web) Redirect(w http.ResponseWriter, r *http.Request, c dispatch.Context[RequestState]) error {
	code := c.Params["shortCode"]

	link, err := h.links.RecordClick(r.Context(), code)
	if errors.Is(err, kv.ErrConflict) {
		// the click is dropped but the visitor still gets redirected
		h.logger.Warn("click not counted", zap.String("code", code), zap.Error(err))

		link, err = h.links.ResolveLink(r.Context(), code)
	}

	if errors.Is(err, shortener.ErrNotFound) {
		return dispatch.Text(w, http.StatusNotFound, "Short link not found")
	}

	if err != nil {
		return err
	}

	meta := middleware.RequestMetaFromContext(r.Context())
	event := &analytics.LinkClickedEvent{
		Code:      code,
		ClickedAt: h.now(),
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
		Country:   meta.Country,
	}

	if err := h.publishers.LinkClicked(r.Context(), event); err != nil {
		h.logger.Error("failed to publish link clicked event",
			zap.String("code", code),
			zap.Error(err),
		)
	}

	return dispatch.Redirect(w, link.LongURL)
}
