package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/container"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

type app struct {
	injector *do.Injector
	logger   *zap.Logger
	server   *http.Server
}

func newApp(options *container.Options) *app {
	injector := do.New()
	do.ProvideValue(injector, options)

	for _, register := range []func(*do.Injector){
		container.LoggerPackage,
		container.RedisPackage,
		container.PostgresPackage,
		container.StorePackage,
		container.ShortenerPackage,
		container.AuthPackage,
		container.EventsPackage,
		container.RateLimitPackage,
		container.HTTPPackage,
	} {
		register(injector)
	}

	return &app{injector: injector, logger: do.MustInvoke[*zap.Logger](injector)}
}

// serve blocks until the listener closes.
func (a *app) serve(options *container.Options) error {
	router := do.MustInvoke[*chi.Mux](a.injector)
	// routes are mounted when the API is built
	_ = do.MustInvoke[huma.API](a.injector)

	if err := do.MustInvoke[*messaging.ConsumerGroup](a.injector).Start(context.Background()); err != nil {
		return fmt.Errorf("start consumers: %w", err)
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", options.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("listening",
		zap.Int("port", options.Port),
		zap.String("public_url", options.PublicURL()),
		zap.String("store", options.StoreBackend),
		zap.String("events", options.EventsBackend),
		zap.String("codes", options.CodeStrategy),
	)

	if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (a *app) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("http shutdown", zap.Error(err))
		}
	}

	if err := a.injector.Shutdown(); err != nil {
		a.logger.Error("services shutdown", zap.Error(err))
	}

	a.logger.Info("stopped")
	_ = a.logger.Sync()
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		a := newApp(options)

		hooks.OnStart(func() {
			if err := a.serve(options); err != nil {
				a.logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(a.stop)
	})

	cli.Run()
}
