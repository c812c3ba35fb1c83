package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Runnable represents a component that can be started and shutdown.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

type topicer interface {
	Topic() string
}

// ConsumerGroup starts and stops a set of consumers together.
// The subscriber, when set, is closed after every consumer has stopped.
type ConsumerGroup struct {
	consumers  []Runnable
	subscriber io.Closer
	logger     *zap.Logger
}

// NewConsumerGroup creates a consumer group. subscriber may be nil when its
// lifecycle is owned elsewhere.
func NewConsumerGroup(subscriber io.Closer, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Add registers consumers to the group.
func (g *ConsumerGroup) Add(consumers ...Runnable) {
	g.consumers = append(g.consumers, consumers...)
}

func describe(i int, r Runnable) string {
	if t, ok := r.(topicer); ok {
		return t.Topic()
	}

	return fmt.Sprintf("consumer %d", i)
}

// Start starts every consumer in order. If one fails, the ones already started are
// shut down in reverse order.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = g.consumers[j].Shutdown()
			}

			return fmt.Errorf("start %s: %w", describe(i, consumer), err)
		}

		g.logger.Debug("consumer started", zap.String("consumer", describe(i, consumer)))
	}

	g.logger.Info("consumer group started", zap.Int("count", len(g.consumers)))

	return nil
}

// Shutdown stops every consumer, then closes the subscriber. All errors are joined.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("shutting down consumer group")

	var errs []error

	for i, consumer := range g.consumers {
		if err := consumer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", describe(i, consumer), err))
		}
	}

	if g.subscriber != nil {
		if err := g.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}

	return errors.Join(errs...)
}
