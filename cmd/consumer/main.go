// Command consumer drains link events from Redis Streams into the analytics store.
// It reads the same flags and SERVICE_* variables as the server.
package main

import (
	"context"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/container"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		do.ProvideValue(injector, options)
		container.LoggerPackage(injector)
		container.RedisPackage(injector)
		container.PostgresPackage(injector)
		container.StorePackage(injector)
		container.ConsumerPackage(injector)

		logger := do.MustInvoke[*zap.Logger](injector)
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if options.StoreBackend == "memory" {
				logger.Warn("memory store selected, clicks will not outlive this process")
			}

			if err := do.MustInvoke[*messaging.ConsumerGroup](injector).Start(ctx); err != nil {
				logger.Fatal("start consumers", zap.Error(err))
			}

			logger.Info("consuming link events", zap.String("redis", options.RedisAddr))
			<-ctx.Done()
		})

		hooks.OnStop(func() {
			cancel()

			if err := injector.Shutdown(); err != nil {
				logger.Error("services shutdown", zap.Error(err))
			}

			logger.Info("stopped")
		})
	})

	cli.Run()
}
