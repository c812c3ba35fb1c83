package container

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/analytics"
	analyticsstore "github.com/serroba/shortlinks/internal/analytics/store"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/handlers"
	"github.com/serroba/shortlinks/internal/health"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/middleware"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"github.com/serroba/shortlinks/internal/render"
	"github.com/serroba/shortlinks/internal/shortener"
	"go.uber.org/zap"
)

// HTTPPackage provides the chi mux: the huma API (stats, health) plus the site router
// as the catch-all.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		router := chi.NewMux()
		router.Use(chimw.RequestID)
		router.Use(chimw.RealIP)
		router.Use(middleware.AccessLog(logger))
		router.Use(middleware.WithRequestMeta)
		router.Use(middleware.RateLimiter(
			do.MustInvoke[*ratelimit.PolicyLimiter](i),
			do.MustInvoke[ratelimit.ScopeResolver](i),
			logger,
		))

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		opts := do.MustInvoke[*Options](i)

		config := huma.DefaultConfig("Short Links", "1.0.0")
		config.OpenAPIPath = "/api/openapi"
		config.DocsPath = "/api/docs"
		config.SchemasPath = "/api/schemas"
		config.Servers = []*huma.Server{{URL: opts.PublicURL()}}

		api := humachi.New(router, config)

		health.RegisterRoutes(api, health.NewHandler(do.MustInvoke[kv.Store](i), eventsChecker(i, opts)))
		handlers.RegisterAPI(api, handlers.NewStatsHandler(
			do.MustInvoke[*shortener.Service](i),
			do.MustInvoke[*analyticsstore.KV](i),
		))

		site := siteRouter(i)
		router.Handle("/", site)
		router.Handle("/*", site)

		return api, nil
	})
}

// siteRouter builds the dispatcher serving pages, sign-in and redirects.
func siteRouter(i *do.Injector) http.Handler {
	logger := do.MustInvoke[*zap.Logger](i)
	opts := do.MustInvoke[*Options](i)

	web := handlers.NewWeb(
		do.MustInvoke[*shortener.Service](i),
		do.MustInvoke[auth.Provider](i),
		do.MustInvoke[render.Renderer](i),
		do.MustInvoke[*analytics.Publishers](i),
		shortener.StrategyName(opts.CodeStrategy),
		logger,
	)

	site := handlers.NewRouter(logger)
	web.Register(site)

	return site
}

func eventsChecker(i *do.Injector, opts *Options) health.Checker {
	if opts.EventsBackend != "redis" {
		return nil
	}

	return health.RedisChecker(do.MustInvoke[*RedisClient](i).Client)
}
