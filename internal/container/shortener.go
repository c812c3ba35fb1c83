package container

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/render"
	"github.com/serroba/shortlinks/internal/shortener"
	"go.uber.org/zap"
)

func ShortenerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)

		generator, err := nanoid.Standard(opts.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("code generator: %w", err)
		}

		strategy, err := shortener.NewStrategy(shortener.StrategyName(opts.CodeStrategy), generator)
		if err != nil {
			return nil, err
		}

		return shortener.NewService(
			do.MustInvoke[kv.Store](i),
			do.MustInvoke[kv.Codec](i),
			do.MustInvoke[*zap.Logger](i),
			shortener.WithStrategy(strategy),
			shortener.WithConflictRetries(uint(max(opts.ConflictRetries, 0))),
		), nil
	})
}

func AuthPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (auth.Provider, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.GitHubClientID == "" {
			do.MustInvoke[*zap.Logger](i).Warn("github client id is not set, sign in will fail")
		}

		return auth.NewGitHubProvider(auth.GitHubConfig{
			ClientID:     opts.GitHubClientID,
			ClientSecret: opts.GitHubClientSecret,
			RedirectURL:  opts.CallbackURL(),
			CookieSecure: opts.CookieSecure,
		})
	})

	do.Provide(injector, func(i *do.Injector) (render.Renderer, error) {
		return render.NewTemplateRenderer(do.MustInvoke[*Options](i).PublicURL())
	})
}
