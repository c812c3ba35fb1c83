package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumers returns one consumer per link topic, each persisting into store.
func NewConsumers(
	subscriber message.Subscriber,
	store Store,
	logger *zap.Logger,
	opts ...messaging.ConsumerOption,
) []messaging.Runnable {
	return []messaging.Runnable{
		messaging.NewConsumer(subscriber, TopicLinkCreated, store.SaveLinkCreated, logger, opts...),
		messaging.NewConsumer(subscriber, TopicLinkClicked, store.SaveLinkClicked, logger, opts...),
	}
}
