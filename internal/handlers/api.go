package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/shortener"
)

// ClickLog reads recorded click events.
type ClickLog interface {
	Clicks(ctx context.Context, code string, limit int) ([]analytics.LinkClickedEvent, error)
}

// StatsHandler serves the JSON link statistics API.
type StatsHandler struct {
	links  *shortener.Service
	clicks ClickLog
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(links *shortener.Service, clicks ClickLog) *StatsHandler {
	return &StatsHandler{links: links, clicks: clicks}
}

// LinkRequest addresses one short link.
type LinkRequest struct {
	Code string `doc:"The short code" example:"EjRWeJq8" path:"code"`
}

// LinkStatsResponse is the public view of a short link.
type LinkStatsResponse struct {
	Body struct {
		Code        string     `doc:"The short code"             json:"code"`
		LongURL     string     `doc:"The original URL"           json:"longUrl"`
		ClickCount  int64      `doc:"Number of recorded clicks"  json:"clickCount"`
		CreatedAt   time.Time  `doc:"When the link was created"  json:"createdAt"`
		LastClickAt *time.Time `doc:"When the link was last hit" json:"lastClickAt,omitempty"`
	}
}

// ClicksRequest pages through the click log of a link.
type ClicksRequest struct {
	Code  string `doc:"The short code"                    example:"EjRWeJq8" path:"code"`
	Limit int    `doc:"Maximum number of clicks returned" default:"50"       maximum:"500" minimum:"1" query:"limit"`
}

// Click is one recorded visit.
type Click struct {
	ClickedAt time.Time `json:"clickedAt"`
	Referrer  string    `json:"referrer,omitempty"`
	Country   string    `json:"country,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}

// ClicksResponse lists recent clicks, newest first.
type ClicksResponse struct {
	Body struct {
		Code   string  `json:"code"`
		Clicks []Click `json:"clicks"`
	}
}

func (h *StatsHandler) resolve(ctx context.Context, code string) (*shortener.ShortLink, error) {
	link, err := h.links.ResolveLink(ctx, code)
	if errors.Is(err, shortener.ErrNotFound) {
		return nil, huma.Error404NotFound("short link not found")
	}

	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load short link")
	}

	return link, nil
}

func (h *StatsHandler) GetLinkStats(ctx context.Context, req *LinkRequest) (*LinkStatsResponse, error) {
	link, err := h.resolve(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	resp := &LinkStatsResponse{}
	resp.Body.Code = link.ShortCode
	resp.Body.LongURL = link.LongURL
	resp.Body.ClickCount = link.ClickCount
	resp.Body.CreatedAt = link.CreatedAt
	resp.Body.LastClickAt = link.LastClickAt

	return resp, nil
}

func (h *StatsHandler) GetLinkClicks(ctx context.Context, req *ClicksRequest) (*ClicksResponse, error) {
	if _, err := h.resolve(ctx, req.Code); err != nil {
		return nil, err
	}

	events, err := h.clicks.Clicks(ctx, req.Code, req.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load clicks")
	}

	resp := &ClicksResponse{}
	resp.Body.Code = req.Code
	resp.Body.Clicks = make([]Click, len(events))

	for i, e := range events {
		resp.Body.Clicks[i] = Click{
			ClickedAt: e.ClickedAt,
			Referrer:  e.Referrer,
			Country:   e.Country,
			UserAgent: e.UserAgent,
		}
	}

	return resp, nil
}
