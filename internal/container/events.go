package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/analytics"
	analyticsstore "github.com/serroba/shortlinks/internal/analytics/store"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

const handlerAttempts = 3

// consumerOptions accept events encoded with either value codec.
func consumerOptions() []messaging.ConsumerOption {
	opts := []messaging.ConsumerOption{messaging.WithHandlerAttempts(handlerAttempts)}

	if cbor, err := kv.NewCBORCodec(); err == nil {
		opts = append(opts, messaging.WithDecoders(cbor))
	}

	return opts
}

// analyticsConsumerGroup is the Redis Streams consumer group that persists link events.
const analyticsConsumerGroup = "analytics"

// EventsPackage provides link event publishers and the click log.
//
// With the memory backend events travel over an in-process channel and the returned
// ConsumerGroup persists them; with redis they go to Redis Streams for cmd/consumer
// and the group is empty.
func EventsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i))

		return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.EventsBackend {
		case "", "memory":
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		case "redis":
			publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
				Client: do.MustInvoke[*RedisClient](i).Client,
			}, messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i)))
			if err != nil {
				return nil, fmt.Errorf("redis stream publisher: %w", err)
			}

			return messaging.NewPublisherGroup(publisher), nil
		default:
			return nil, fmt.Errorf("unknown events backend %q", opts.EventsBackend)
		}
	})

	do.Provide(injector, func(i *do.Injector) (*analytics.Publishers, error) {
		return analytics.NewPublishers(
			do.MustInvoke[*messaging.PublisherGroup](i).Publisher(),
			messaging.WithCodec(do.MustInvoke[kv.Codec](i)),
			messaging.WithCorrelationID(chimw.GetReqID),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*analyticsstore.KV, error) {
		return analyticsstore.NewKV(do.MustInvoke[kv.Store](i), do.MustInvoke[kv.Codec](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		// the publisher group closes the channel
		group := messaging.NewConsumerGroup(nil, logger)

		if opts.EventsBackend == "" || opts.EventsBackend == "memory" {
			group.Add(analytics.NewConsumers(
				do.MustInvoke[*gochannel.GoChannel](i),
				analyticsstore.NewLogging(do.MustInvoke[*analyticsstore.KV](i), logger),
				logger,
				consumerOptions()...,
			)...)
		}

		return group, nil
	})
}

// ConsumerPackage provides a ConsumerGroup reading link events from Redis Streams.
func ConsumerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*analyticsstore.KV, error) {
		return analyticsstore.NewKV(do.MustInvoke[kv.Store](i), do.MustInvoke[kv.Codec](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        do.MustInvoke[*RedisClient](i).Client,
			ConsumerGroup: analyticsConsumerGroup,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("redis stream subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		clicks := analyticsstore.NewLogging(do.MustInvoke[*analyticsstore.KV](i), logger)
		group.Add(analytics.NewConsumers(subscriber, clicks, logger, consumerOptions()...)...)

		return group, nil
	})
}
