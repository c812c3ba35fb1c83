package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

const probeTimeout = 2 * time.Second

// Checker reports whether a dependency is reachable.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc lets an ordinary function act as a Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RedisChecker pings the server behind client.
func RedisChecker(client *redis.Client) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// Handler reports on the link store and, when one is configured, the event broker.
type Handler struct {
	store  Checker
	events Checker
}

// NewHandler wires the probes. events may be nil.
func NewHandler(store, events Checker) *Handler {
	return &Handler{store: store, events: events}
}

type Response struct {
	Body struct {
		Status string `json:"status" enum:"ok,degraded"`
		Store  string `json:"store" enum:"healthy,unhealthy"`
		Events string `json:"events,omitempty" enum:"healthy,unhealthy"`
	}
}

// Check probes each dependency under its own timeout. Any failure degrades the status
// but the endpoint still answers 200.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Store = probe(ctx, h.store)

	if h.events != nil {
		resp.Body.Events = probe(ctx, h.events)
	}

	resp.Body.Status = "ok"
	if resp.Body.Store == "unhealthy" || resp.Body.Events == "unhealthy" {
		resp.Body.Status = "degraded"
	}

	return resp, nil
}

func probe(ctx context.Context, c Checker) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if c.Ping(ctx) != nil {
		return "unhealthy"
	}

	return "healthy"
}

func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report dependency health",
		Tags:        []string{"Health"},
	}, h.Check)
}
