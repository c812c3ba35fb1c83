package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterAPI registers the JSON link statistics routes.
func RegisterAPI(api huma.API, stats *StatsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-link-stats",
		Method:      http.MethodGet,
		Path:        "/api/links/{code}",
		Summary:     "Get short link statistics",
		Description: "Returns the target URL, click count and timestamps of a short link.",
		Tags:        []string{"Links"},
	}, stats.GetLinkStats)

	huma.Register(api, huma.Operation{
		OperationID: "list-link-clicks",
		Method:      http.MethodGet,
		Path:        "/api/links/{code}/clicks",
		Summary:     "List recent clicks",
		Description: "Returns the most recent recorded clicks of a short link, newest first.",
		Tags:        []string{"Links"},
	}, stats.GetLinkClicks)
}
