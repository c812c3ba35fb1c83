package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/serroba/shortlinks/internal/kv"
)

// Message metadata keys set on every published event.
const (
	MetadataEventType   = "event_type"
	MetadataCodec       = "codec"
	MetadataPublishedAt = "published_at"
)

// Publish is a function that publishes a typed event.
type Publish[T any] func(ctx context.Context, event *T) error

type publishConfig struct {
	codec         kv.Codec
	correlationID func(context.Context) string
	now           func() time.Time
}

// PublishOption configures NewPublishFunc.
type PublishOption func(*publishConfig)

// WithCodec encodes payloads with codec instead of JSON. The codec name travels in
// the message metadata so consumers can pick the matching decoder.
func WithCodec(codec kv.Codec) PublishOption {
	return func(c *publishConfig) { c.codec = codec }
}

// WithCorrelationID stamps each message with the id fn extracts from the publish context,
// typically the HTTP request id.
func WithCorrelationID(fn func(context.Context) string) PublishOption {
	return func(c *publishConfig) { c.correlationID = fn }
}

// NewPublishFunc creates a typed publish function for a specific topic.
func NewPublishFunc[T any](publisher message.Publisher, topic string, opts ...PublishOption) Publish[T] {
	cfg := publishConfig{codec: kv.JSONCodec{}, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, event *T) error {
		payload, err := cfg.codec.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", topic, err)
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(MetadataEventType, topic)
		msg.Metadata.Set(MetadataCodec, cfg.codec.Name())
		msg.Metadata.Set(MetadataPublishedAt, cfg.now().UTC().Format(time.RFC3339Nano))

		if cfg.correlationID != nil {
			if id := cfg.correlationID(ctx); id != "" {
				middleware.SetCorrelationID(id, msg)
			}
		}

		msg.SetContext(ctx)

		return publisher.Publish(topic, msg)
	}
}

// PublisherGroup owns the publisher shared by every typed publish function.
type PublisherGroup struct {
	publisher message.Publisher
}

// NewPublisherGroup creates a new publisher group.
func NewPublisherGroup(publisher message.Publisher) *PublisherGroup {
	return &PublisherGroup{publisher: publisher}
}

// Publisher returns the underlying message publisher for creating typed publish functions.
func (g *PublisherGroup) Publisher() message.Publisher {
	return g.publisher
}

// Shutdown closes the underlying publisher.
func (g *PublisherGroup) Shutdown() error {
	return g.publisher.Close()
}
